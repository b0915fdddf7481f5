package blackout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

var ErrInvalidRange = errors.New("end date must be after start date")

type Store interface {
	Upsert(ctx context.Context, blackout models.BlackoutRange) error
	BulkUpsert(ctx context.Context, blackouts []models.BlackoutRange) error
	GetByStart(ctx context.Context, start time.Time) (*models.BlackoutRange, error)
	Delete(ctx context.Context, start time.Time) error
	OverlappingRanges(ctx context.Context, from, to time.Time) ([]models.BlackoutRange, error)
}

// Invalidator drops cached availability for the months a mutation touches.
type Invalidator interface {
	InvalidateRange(ctx context.Context, start, end time.Time)
}

type Service struct {
	DB     Store
	Cache  Invalidator
	logger *logger.Logger
}

// NewService builds the blackout manager. A nil cache skips invalidation.
func NewService(db Store, cache Invalidator, log *logger.Logger) *Service {
	return &Service{DB: db, Cache: cache, logger: log}
}

func (s *Service) invalidate(ctx context.Context, start, end time.Time) {
	if s.Cache != nil {
		s.Cache.InvalidateRange(ctx, start, end)
	}
}

// Add closes [start, end) with the given reason. A zero end closes just the
// start day.
func (s *Service) Add(ctx context.Context, start, end time.Time, reason, createdBy string) (models.BlackoutRange, error) {
	start = utils.DayUTC(start)
	if end.IsZero() {
		end = start.AddDate(0, 0, 1)
	} else {
		end = utils.DayUTC(end)
	}
	if !end.After(start) {
		return models.BlackoutRange{}, ErrInvalidRange
	}

	blackout := models.BlackoutRange{
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.Upsert(ctx, blackout); err != nil {
		return models.BlackoutRange{}, fmt.Errorf("failed to save blackout: %w", err)
	}
	s.invalidate(ctx, start, end)

	s.logger.LogDatabase("UPSERT", "blackout_ranges",
		fmt.Sprintf("%s to %s by %s", utils.FormatDay(start), utils.FormatDay(end), createdBy))
	return blackout, nil
}

// BulkAdd closes every listed day as its own one-day range, all in one
// transaction. Days already closed are overwritten with the new reason.
func (s *Service) BulkAdd(ctx context.Context, dates []time.Time, reason, createdBy string) ([]models.BlackoutRange, error) {
	now := time.Now().UTC()
	blackouts := make([]models.BlackoutRange, 0, len(dates))
	seen := make(map[time.Time]bool)
	for _, d := range dates {
		day := utils.DayUTC(d)
		if seen[day] {
			continue
		}
		seen[day] = true
		blackouts = append(blackouts, models.BlackoutRange{
			StartDate: day,
			EndDate:   day.AddDate(0, 0, 1),
			Reason:    reason,
			CreatedBy: createdBy,
			CreatedAt: now,
		})
	}

	if err := s.DB.BulkUpsert(ctx, blackouts); err != nil {
		return nil, fmt.Errorf("failed to save blackout batch: %w", err)
	}
	if len(blackouts) > 0 {
		first, last := blackouts[0].StartDate, blackouts[0].EndDate
		for _, b := range blackouts[1:] {
			if b.StartDate.Before(first) {
				first = b.StartDate
			}
			if b.EndDate.After(last) {
				last = b.EndDate
			}
		}
		s.invalidate(ctx, first, last)
	}

	s.logger.LogDatabase("UPSERT", "blackout_ranges",
		fmt.Sprintf("bulk of %d days by %s", len(blackouts), createdBy))
	return blackouts, nil
}

func (s *Service) Remove(ctx context.Context, start time.Time) error {
	day := utils.DayUTC(start)

	existing, err := s.DB.GetByStart(ctx, day)
	if err != nil {
		return err
	}
	if err := s.DB.Delete(ctx, day); err != nil {
		return err
	}
	s.invalidate(ctx, existing.StartDate, existing.EndDate)

	s.logger.LogDatabase("DELETE", "blackout_ranges", utils.FormatDay(day))
	return nil
}

func (s *Service) ListForMonth(ctx context.Context, year int, month time.Month) ([]models.BlackoutRange, error) {
	from, to := utils.MonthWindow(year, month)
	return s.DB.OverlappingRanges(ctx, from, to)
}
