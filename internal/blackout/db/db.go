package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var ErrBlackoutNotFound = errors.New("blackout not found")

type DB struct {
	Bun *bun.DB
}

// Upsert inserts the range or, when one already starts on the same day,
// overwrites it in place. Re-running an import never stacks duplicates.
func (d *DB) Upsert(ctx context.Context, blackout models.BlackoutRange) error {
	_, err := d.Bun.NewInsert().
		Model(&blackout).
		On("CONFLICT (start_date) DO UPDATE").
		Set("end_date = EXCLUDED.end_date").
		Set("reason = EXCLUDED.reason").
		Set("created_by = EXCLUDED.created_by").
		Exec(ctx)
	return err
}

// BulkUpsert writes all ranges in one transaction: either the whole batch
// lands or none of it does.
func (d *DB) BulkUpsert(ctx context.Context, blackouts []models.BlackoutRange) error {
	if len(blackouts) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&blackouts).
			On("CONFLICT (start_date) DO UPDATE").
			Set("end_date = EXCLUDED.end_date").
			Set("reason = EXCLUDED.reason").
			Set("created_by = EXCLUDED.created_by").
			Exec(ctx)
		return err
	})
}

func (d *DB) GetByStart(ctx context.Context, start time.Time) (*models.BlackoutRange, error) {
	var blackout models.BlackoutRange
	err := d.Bun.NewSelect().
		Model(&blackout).
		Where("start_date = ?", start).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlackoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &blackout, nil
}

func (d *DB) Delete(ctx context.Context, start time.Time) error {
	res, err := d.Bun.NewDelete().
		Model((*models.BlackoutRange)(nil)).
		Where("start_date = ?", start).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrBlackoutNotFound
	}
	return nil
}

// OverlappingRanges returns every blackout that shares at least one day with
// the half-open window [from, to).
func (d *DB) OverlappingRanges(ctx context.Context, from, to time.Time) ([]models.BlackoutRange, error) {
	var blackouts []models.BlackoutRange
	err := d.Bun.NewSelect().
		Model(&blackouts).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return blackouts, nil
}
