package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var ErrGiftCardNotFound = errors.New("gift card not found")

type DB struct {
	Bun *bun.DB
}

// InsertIfAbsent writes the freshly minted card unless one already exists for
// the same payment, and returns whichever card is on record for that payment.
// This is what makes a replayed purchase notification hand back the original
// code instead of minting a second card.
func (d *DB) InsertIfAbsent(ctx context.Context, card models.GiftCard) (*models.GiftCard, bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&card).
		On("CONFLICT (payment_ref) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	if rows, raErr := res.RowsAffected(); raErr == nil && rows == 1 {
		return &card, false, nil
	}

	existing, err := d.GetByPaymentRef(ctx, card.PaymentRef)
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	err := d.Bun.NewSelect().
		Model(&card).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiftCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (d *DB) GetByPaymentRef(ctx context.Context, paymentRef string) (*models.GiftCard, error) {
	var card models.GiftCard
	err := d.Bun.NewSelect().
		Model(&card).
		Where("payment_ref = ?", paymentRef).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiftCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (d *DB) List(ctx context.Context) ([]models.GiftCard, error) {
	var cards []models.GiftCard
	err := d.Bun.NewSelect().
		Model(&cards).
		Order("issued_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// Redeem flips an active card to redeemed exactly once. A card that is
// missing or already redeemed reports ErrGiftCardNotFound either way, so the
// caller cannot probe which of the two it was.
func (d *DB) Redeem(ctx context.Context, code string) (*models.GiftCard, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.GiftCard)(nil)).
		Set("status = ?", models.GiftCardRedeemed).
		Set("redeemed_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Where("status = ?", models.GiftCardActive).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, raErr := res.RowsAffected(); raErr == nil && rows == 0 {
		return nil, ErrGiftCardNotFound
	}
	return d.GetByCode(ctx, code)
}
