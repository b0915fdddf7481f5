package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var ErrReservationNotFound = errors.New("reservation not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) Create(ctx context.Context, reservation models.Reservation) error {
	_, err := d.Bun.NewInsert().Model(&reservation).Exec(ctx)
	return err
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservation).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (d *DB) GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservation).
		Where("payment_ref = ?", paymentRef).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// AttachPaymentRef records the processor's correlation id on a row that does
// not have one yet. Rows that already carry a ref are left alone.
func (d *DB) AttachPaymentRef(ctx context.Context, id, paymentRef string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("payment_ref = ?", paymentRef).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("payment_ref IS NULL OR payment_ref = ''").
		Exec(ctx)
	return err
}

// ConfirmByID flips the row to confirmed and back-fills blank customer fields
// from what the processor reported. The guard on payment_ref makes replays
// no-ops: a second delivery with the same ref re-runs the identical update,
// while a different ref on the row leaves it untouched (0 rows). Canceled
// rows are never resurrected.
func (d *DB) ConfirmByID(ctx context.Context, id, paymentRef string, customer models.CustomerDetails) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.ReservationConfirmed).
		Set("payment_ref = ?", paymentRef).
		Set("customer_name = COALESCE(NULLIF(customer_name, ''), NULLIF(?, ''))", customer.Name).
		Set("customer_email = COALESCE(NULLIF(customer_email, ''), NULLIF(?, ''))", customer.Email).
		Set("customer_phone = COALESCE(NULLIF(customer_phone, ''), NULLIF(?, ''))", customer.Phone).
		Set("postal_code = COALESCE(NULLIF(postal_code, ''), NULLIF(?, ''))", customer.PostalCode).
		Set("address = COALESCE(NULLIF(address, ''), NULLIF(?, ''))", customer.Address).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status <> ?", models.ReservationCanceled).
		Where("payment_ref IS NULL OR payment_ref = '' OR payment_ref = ?", paymentRef).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertConfirmed writes a confirmed row keyed on the unique payment_ref.
// Used when a settled payment arrives for a reservation that has no pending
// row; replays collapse onto the same row by construction.
func (d *DB) UpsertConfirmed(ctx context.Context, reservation models.Reservation) error {
	_, err := d.Bun.NewInsert().
		Model(&reservation).
		On("CONFLICT (payment_ref) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (d *DB) Cancel(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.ReservationCanceled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// ConfirmedOverlapping returns the confirmed rows sharing at least one day
// with [from, to). Pending rows never appear here: a hold that has not been
// paid for blocks nobody.
func (d *DB) ConfirmedOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Where("status = ?", models.ReservationConfirmed).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListRange returns every reservation overlapping [from, to) regardless of
// status, newest first. Admin calendar view.
func (d *DB) ListRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
