package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var ErrEventNotFound = errors.New("popup event not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, event models.PopupEvent) error {
	_, err := d.Bun.NewInsert().Model(&event).Exec(ctx)
	return err
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.PopupEvent, error) {
	var event models.PopupEvent
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) ListEvents(ctx context.Context) ([]models.PopupEvent, error) {
	var events []models.PopupEvent
	err := d.Bun.NewSelect().
		Model(&events).
		Order("event_date").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// RecordSale books requested seats against the event for one settled payment.
// The sale row's composite key makes replays return the stored grant instead
// of selling twice. The grant is clamped to the seats actually left, so a
// sold-out event grants zero; everything happens in one transaction, and a
// failure rolls the sale row back out so the processor can retry.
func (d *DB) RecordSale(ctx context.Context, eventID, paymentRef string, requested int) (granted int, duplicate bool, err error) {
	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		sale := models.PopupSale{
			EventID:    eventID,
			PaymentRef: paymentRef,
			Quantity:   0,
			CreatedAt:  time.Now().UTC(),
		}
		res, insErr := tx.NewInsert().
			Model(&sale).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if insErr != nil {
			return insErr
		}
		if rows, raErr := res.RowsAffected(); raErr == nil && rows == 0 {
			var existing models.PopupSale
			if selErr := tx.NewSelect().
				Model(&existing).
				Where("event_id = ?", eventID).
				Where("payment_ref = ?", paymentRef).
				Limit(1).
				Scan(ctx); selErr != nil {
				return selErr
			}
			granted = existing.Quantity
			duplicate = true
			return nil
		}

		// Optimistic take: re-read and conditionally bump until the counter
		// moves under us no more.
		for attempt := 0; attempt < 5; attempt++ {
			var event models.PopupEvent
			selErr := tx.NewSelect().
				Model(&event).
				Where("id = ?", eventID).
				Limit(1).
				Scan(ctx)
			if errors.Is(selErr, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			if selErr != nil {
				return selErr
			}

			granted = requested
			if remaining := event.Capacity - event.Sold; granted > remaining {
				granted = remaining
			}
			if granted < 0 {
				granted = 0
			}

			upd, updErr := tx.NewUpdate().
				Model((*models.PopupEvent)(nil)).
				Set("sold = sold + ?", granted).
				Where("id = ?", eventID).
				Where("sold = ?", event.Sold).
				Exec(ctx)
			if updErr != nil {
				return updErr
			}
			if rows, raErr := upd.RowsAffected(); raErr == nil && rows == 1 {
				_, qErr := tx.NewUpdate().
					Model((*models.PopupSale)(nil)).
					Set("quantity = ?", granted).
					Where("event_id = ?", eventID).
					Where("payment_ref = ?", paymentRef).
					Exec(ctx)
				return qErr
			}
		}
		return fmt.Errorf("seat counter for event %s kept moving, giving up", eventID)
	})
	if err != nil {
		return 0, false, err
	}
	return granted, duplicate, nil
}

// AdjustSeats moves the sold counter by delta, clamped to [0, capacity].
func (d *DB) AdjustSeats(ctx context.Context, id string, delta int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.PopupEvent)(nil)).
		Set("sold = CASE WHEN sold + ? < 0 THEN 0 WHEN sold + ? > capacity THEN capacity ELSE sold + ? END",
			delta, delta, delta).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, raErr := res.RowsAffected(); raErr == nil && rows == 0 {
		return ErrEventNotFound
	}
	return nil
}
