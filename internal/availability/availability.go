package availability

import (
	"context"
	"sort"
	"time"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// The two read sources are implemented by the booking and blackout stores.
type ReservationSource interface {
	ConfirmedOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

type BlackoutSource interface {
	OverlappingRanges(ctx context.Context, from, to time.Time) ([]models.BlackoutRange, error)
}

// Calculator derives which days are closed to new reservations. Only
// confirmed reservations and blackouts count: an unpaid hold blocks nobody.
type Calculator struct {
	Reservations ReservationSource
	Blackouts    BlackoutSource
	Capacity     int
}

func NewCalculator(reservations ReservationSource, blackouts BlackoutSource, capacity int) *Calculator {
	if capacity < 1 {
		capacity = 1
	}
	return &Calculator{
		Reservations: reservations,
		Blackouts:    blackouts,
		Capacity:     capacity,
	}
}

// BlockedDays returns sorted, de-duplicated YYYY-MM-DD strings for the month.
// Every day of every overlapping range is included, so a stay straddling the
// month boundary also reports its spill-over days.
func (c *Calculator) BlockedDays(ctx context.Context, year int, month time.Month) ([]string, error) {
	from, to := utils.MonthWindow(year, month)

	reservations, err := c.Reservations.ConfirmedOverlapping(ctx, from, to)
	if err != nil {
		return nil, err
	}
	blackouts, err := c.Blackouts.OverlappingRanges(ctx, from, to)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range reservations {
		for _, d := range utils.DaysBetween(r.StartDate, r.EndDate) {
			counts[utils.FormatDay(d)]++
		}
	}

	blocked := make(map[string]bool)
	for day, n := range counts {
		if n >= c.Capacity {
			blocked[day] = true
		}
	}
	for _, b := range blackouts {
		for _, d := range utils.DaysBetween(b.StartDate, b.EndDate) {
			blocked[utils.FormatDay(d)] = true
		}
	}

	days := make([]string, 0, len(blocked))
	for day := range blocked {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

// RangeFits reports whether every day of [start, end) still has room for one
// more reservation. A row with the given id is ignored, so a reservation can
// be re-checked against everyone but itself.
func (c *Calculator) RangeFits(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	blackouts, err := c.Blackouts.OverlappingRanges(ctx, start, end)
	if err != nil {
		return false, err
	}
	if len(blackouts) > 0 {
		return false, nil
	}

	reservations, err := c.Reservations.ConfirmedOverlapping(ctx, start, end)
	if err != nil {
		return false, err
	}

	counts := make(map[string]int)
	for _, r := range reservations {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		for _, d := range utils.DaysBetween(r.StartDate, r.EndDate) {
			counts[utils.FormatDay(d)]++
		}
	}

	for _, d := range utils.DaysBetween(start, end) {
		if counts[utils.FormatDay(d)] >= c.Capacity {
			return false, nil
		}
	}
	return true, nil
}
