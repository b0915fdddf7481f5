package reporting

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/uptrace/bun"
)

// Service builds the admin month summary. Read-only: every number is derived
// from the reservation, gift card and popup tables as they stand.
type Service struct {
	db     *bun.DB
	logger *logger.Logger
}

func NewService(db *bun.DB, log *logger.Logger) *Service {
	return &Service{db: db, logger: log}
}

type MonthReport struct {
	Year                   int                `json:"year"`
	Month                  int                `json:"month"`
	ConfirmedReservations  int                `json:"confirmed_reservations"`
	BookedDays             int                `json:"booked_days"`
	DepositRevenueCents    int64              `json:"deposit_revenue_cents"`
	GiftCardLiabilityCents int64              `json:"gift_card_liability_cents"`
	PopupEvents            []PopupSellThrough `json:"popup_events"`
}

// PopupSellThrough compares paid seats against the sold counter; the gap is
// whatever the admin moved by hand.
type PopupSellThrough struct {
	EventID      string `json:"event_id"`
	Name         string `json:"name"`
	EventDate    string `json:"event_date"`
	Capacity     int    `json:"capacity"`
	Sold         int    `json:"sold"`
	PaidSeats    int    `json:"paid_seats"`
	RevenueCents int64  `json:"revenue_cents"`
}

func (s *Service) MonthReport(ctx context.Context, year int, month time.Month) (*MonthReport, error) {
	from, to := utils.MonthWindow(year, month)

	var reservations []models.Reservation
	err := s.db.NewSelect().
		Model(&reservations).
		Where("status = ?", models.ReservationConfirmed).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed reservations: %w", err)
	}

	// Distinct occupied days, clipped to the month so a stay straddling the
	// boundary only counts the days that fall inside it. Deposit revenue is
	// recognized in the month the stay begins.
	occupied := make(map[string]bool)
	var depositCents int64
	for _, r := range reservations {
		for _, d := range utils.DaysBetween(r.StartDate, r.EndDate) {
			if !d.Before(from) && d.Before(to) {
				occupied[utils.FormatDay(d)] = true
			}
		}
		if !r.StartDate.Before(from) && r.StartDate.Before(to) {
			depositCents += r.DepositCents
		}
	}

	var liabilityCents int64
	err = s.db.NewSelect().
		Model((*models.GiftCard)(nil)).
		ColumnExpr("COALESCE(SUM(remaining_cents), 0)").
		Where("status = ?", models.GiftCardActive).
		Scan(ctx, &liabilityCents)
	if err != nil {
		return nil, fmt.Errorf("failed to sum gift card liability: %w", err)
	}

	type popupRaw struct {
		ID         string    `bun:"id"`
		Name       string    `bun:"name"`
		EventDate  time.Time `bun:"event_date"`
		Capacity   int       `bun:"capacity"`
		Sold       int       `bun:"sold"`
		PriceCents int64     `bun:"price_cents"`
		PaidSeats  int       `bun:"paid_seats"`
	}

	var rows []popupRaw
	err = s.db.NewRaw(`
		SELECT e.id, e.name, e.event_date, e.capacity, e.sold, e.price_cents,
		       COALESCE(SUM(s.quantity), 0) AS paid_seats
		FROM popup_events e
		LEFT JOIN popup_sales s ON s.event_id = e.id
		WHERE e.event_date >= ? AND e.event_date < ?
		GROUP BY e.id, e.name, e.event_date, e.capacity, e.sold, e.price_cents
		ORDER BY e.event_date
	`, from, to).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate popup sales: %w", err)
	}

	popups := make([]PopupSellThrough, 0, len(rows))
	for _, row := range rows {
		popups = append(popups, PopupSellThrough{
			EventID:      row.ID,
			Name:         row.Name,
			EventDate:    utils.FormatDay(row.EventDate),
			Capacity:     row.Capacity,
			Sold:         row.Sold,
			PaidSeats:    row.PaidSeats,
			RevenueCents: row.PriceCents * int64(row.PaidSeats),
		})
	}

	report := &MonthReport{
		Year:                   year,
		Month:                  int(month),
		ConfirmedReservations:  len(reservations),
		BookedDays:             len(occupied),
		DepositRevenueCents:    depositCents,
		GiftCardLiabilityCents: liabilityCents,
		PopupEvents:            popups,
	}

	s.logger.LogProcess("REPORT", fmt.Sprintf("%04d-%02d: %d confirmed, %d booked days", year, month, report.ConfirmedReservations, report.BookedDays))
	return report, nil
}
