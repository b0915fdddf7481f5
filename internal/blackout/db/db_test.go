package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/blackout/db"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// Each pooled connection would otherwise get its own empty :memory: DB.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.BlackoutRange)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create blackout table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertOverwritesSameStartDay(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	err := blackoutDB.Upsert(ctx, models.BlackoutRange{
		StartDate: day(2026, 11, 20),
		EndDate:   day(2026, 11, 21),
		Reason:    "private party",
		CreatedBy: "admin@example.com",
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)

	// Same start day again with a longer range and a new reason.
	err = blackoutDB.Upsert(ctx, models.BlackoutRange{
		StartDate: day(2026, 11, 20),
		EndDate:   day(2026, 11, 23),
		Reason:    "kitchen renovation",
		CreatedBy: "admin@example.com",
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)

	var blackouts []models.BlackoutRange
	err = bunDB.NewSelect().Model(&blackouts).Scan(ctx)
	assert.NoError(t, err)
	assert.Len(t, blackouts, 1)
	assert.Equal(t, "kitchen renovation", blackouts[0].Reason)
	assert.Equal(t, "2026-11-23", blackouts[0].EndDate.UTC().Format("2006-01-02"))
}

func TestBulkUpsertIsIdempotent(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	batch := []models.BlackoutRange{
		{StartDate: day(2026, 12, 24), EndDate: day(2026, 12, 25), Reason: "holidays", CreatedAt: time.Now().UTC()},
		{StartDate: day(2026, 12, 25), EndDate: day(2026, 12, 26), Reason: "holidays", CreatedAt: time.Now().UTC()},
		{StartDate: day(2026, 12, 31), EndDate: day(2027, 1, 1), Reason: "holidays", CreatedAt: time.Now().UTC()},
	}

	err := blackoutDB.BulkUpsert(ctx, batch)
	assert.NoError(t, err)

	// Submitting the identical batch again must not stack duplicates.
	err = blackoutDB.BulkUpsert(ctx, batch)
	assert.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.BlackoutRange)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBulkUpsertEmptyBatch(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := blackoutDB.BulkUpsert(context.Background(), nil)
	assert.NoError(t, err)
}

func TestGetByStart(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	err := blackoutDB.Upsert(ctx, models.BlackoutRange{
		StartDate: day(2026, 11, 20),
		EndDate:   day(2026, 11, 23),
		Reason:    "kitchen renovation",
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)

	found, err := blackoutDB.GetByStart(ctx, day(2026, 11, 20))
	assert.NoError(t, err)
	assert.Equal(t, "kitchen renovation", found.Reason)
	assert.Equal(t, "2026-11-23", found.EndDate.UTC().Format("2006-01-02"))

	_, err = blackoutDB.GetByStart(ctx, day(2026, 11, 21))
	assert.ErrorIs(t, err, db.ErrBlackoutNotFound)
}

func TestDelete(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	err := blackoutDB.Upsert(ctx, models.BlackoutRange{
		StartDate: day(2026, 11, 20),
		EndDate:   day(2026, 11, 21),
		Reason:    "private party",
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)

	err = blackoutDB.Delete(ctx, day(2026, 11, 20))
	assert.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.BlackoutRange)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	err = blackoutDB.Delete(ctx, day(2026, 11, 20))
	assert.ErrorIs(t, err, db.ErrBlackoutNotFound)
}

func TestOverlappingRanges(t *testing.T) {
	blackoutDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	seed := []models.BlackoutRange{
		// Straddles the start of November.
		{StartDate: day(2026, 10, 30), EndDate: day(2026, 11, 2), Reason: "a", CreatedAt: time.Now().UTC()},
		// Fully inside November.
		{StartDate: day(2026, 11, 10), EndDate: day(2026, 11, 12), Reason: "b", CreatedAt: time.Now().UTC()},
		// Ends exactly on November 1st: half-open, so it never touches November.
		{StartDate: day(2026, 10, 28), EndDate: day(2026, 11, 1), Reason: "c", CreatedAt: time.Now().UTC()},
		// December only.
		{StartDate: day(2026, 12, 1), EndDate: day(2026, 12, 3), Reason: "d", CreatedAt: time.Now().UTC()},
	}
	_, err := bunDB.NewInsert().Model(&seed).Exec(ctx)
	assert.NoError(t, err)

	from := day(2026, 11, 1)
	to := day(2026, 12, 1)
	blackouts, err := blackoutDB.OverlappingRanges(ctx, from, to)
	assert.NoError(t, err)
	assert.Len(t, blackouts, 2)
	assert.Equal(t, "a", blackouts[0].Reason)
	assert.Equal(t, "b", blackouts[1].Reason)
}
