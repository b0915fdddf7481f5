package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().
		Model((*models.GiftCard)(nil)).
		Exec(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func activeCard(code, paymentRef string, faceValue int64) models.GiftCard {
	return models.GiftCard{
		Code:           code,
		PaymentRef:     paymentRef,
		FaceValueCents: faceValue,
		RemainingCents: faceValue,
		BuyerName:      "Dana Field",
		BuyerEmail:     "dana@example.com",
		Status:         models.GiftCardActive,
	}
}

func TestInsertIfAbsentIdempotentPerPayment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, duplicate, err := db.InsertIfAbsent(ctx, activeCard("GC-AAAA-AAAA-AAAA", "cs_gift_1", 10000))
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, "GC-AAAA-AAAA-AAAA", first.Code)

	// Replay of the same payment arrives with a freshly generated code. The
	// original card must win and no second card may appear.
	second, duplicate, err := db.InsertIfAbsent(ctx, activeCard("GC-BBBB-BBBB-BBBB", "cs_gift_1", 10000))
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, "GC-AAAA-AAAA-AAAA", second.Code)

	count, err := db.Bun.NewSelect().Model((*models.GiftCard)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertIfAbsentDistinctPayments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, _, err := db.InsertIfAbsent(ctx, activeCard("GC-AAAA-AAAA-AAAA", "cs_gift_1", 10000))
	require.NoError(t, err)
	_, duplicate, err := db.InsertIfAbsent(ctx, activeCard("GC-BBBB-BBBB-BBBB", "cs_gift_2", 15000))
	require.NoError(t, err)
	assert.False(t, duplicate)

	count, err := db.Bun.NewSelect().Model((*models.GiftCard)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedeemIsOneWay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, _, err := db.InsertIfAbsent(ctx, activeCard("GC-CCCC-CCCC-CCCC", "cs_gift_3", 5000))
	require.NoError(t, err)

	redeemed, err := db.Redeem(ctx, "GC-CCCC-CCCC-CCCC")
	require.NoError(t, err)
	assert.Equal(t, models.GiftCardRedeemed, redeemed.Status)
	assert.False(t, redeemed.RedeemedAt.IsZero())

	_, err = db.Redeem(ctx, "GC-CCCC-CCCC-CCCC")
	assert.ErrorIs(t, err, ErrGiftCardNotFound)

	// The stored row must stay redeemed.
	card, err := db.GetByCode(ctx, "GC-CCCC-CCCC-CCCC")
	require.NoError(t, err)
	assert.Equal(t, models.GiftCardRedeemed, card.Status)
}

func TestRedeemUnknownCode(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Redeem(context.Background(), "GC-ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrGiftCardNotFound)
}

func TestGetByCode(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, _, err := db.InsertIfAbsent(ctx, activeCard("GC-DDDD-DDDD-DDDD", "cs_gift_4", 7500))
	require.NoError(t, err)

	card, err := db.GetByCode(ctx, "GC-DDDD-DDDD-DDDD")
	require.NoError(t, err)
	assert.Equal(t, int64(7500), card.FaceValueCents)
	assert.Equal(t, int64(7500), card.RemainingCents)

	_, err = db.GetByCode(ctx, "GC-EEEE-EEEE-EEEE")
	assert.ErrorIs(t, err, ErrGiftCardNotFound)
}

func TestListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	codes := []string{"GC-1111-1111-1111", "GC-2222-2222-2222", "GC-3333-3333-3333"}
	for i, ref := range []string{"cs_a", "cs_b", "cs_c"} {
		card := activeCard(codes[i], ref, 5000)
		card.IssuedAt = base.Add(time.Duration(i) * time.Hour)
		_, _, err := db.InsertIfAbsent(ctx, card)
		require.NoError(t, err)
	}

	cards, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "GC-3333-3333-3333", cards[0].Code)
	assert.Equal(t, "GC-1111-1111-1111", cards[2].Code)
}
