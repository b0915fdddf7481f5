package popup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidEvent    = errors.New("event needs a name, a date, positive capacity and a positive price")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type Store interface {
	CreateEvent(ctx context.Context, event models.PopupEvent) error
	GetEvent(ctx context.Context, id string) (*models.PopupEvent, error)
	ListEvents(ctx context.Context) ([]models.PopupEvent, error)
	RecordSale(ctx context.Context, eventID, paymentRef string, requested int) (int, bool, error)
	AdjustSeats(ctx context.Context, id string, delta int) error
}

type Service struct {
	DB     Store
	logger *logger.Logger
}

func NewService(db Store, log *logger.Logger) *Service {
	return &Service{DB: db, logger: log}
}

func (s *Service) Create(ctx context.Context, req models.PopupCreateRequest) (*models.PopupEvent, error) {
	date, err := utils.ParseDay(req.EventDate)
	if err != nil || req.Name == "" || req.Capacity < 1 || req.PriceCents < 1 {
		return nil, ErrInvalidEvent
	}

	event := models.PopupEvent{
		ID:         uuid.New().String(),
		Name:       req.Name,
		EventDate:  date,
		Capacity:   req.Capacity,
		Sold:       0,
		PriceCents: req.PriceCents,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create popup event: %w", err)
	}

	s.logger.Info("POPUP", fmt.Sprintf("created %s (%s, %d seats)", event.Name, req.EventDate, event.Capacity))
	return &event, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.PopupEvent, error) {
	return s.DB.GetEvent(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.PopupEvent, error) {
	return s.DB.ListEvents(ctx)
}

// RecordPurchase books seats for one settled payment. The grant may come back
// smaller than requested when the event is nearly (or fully) sold out.
func (s *Service) RecordPurchase(ctx context.Context, eventID, paymentRef string, quantity int) (granted int, duplicate bool, err error) {
	if quantity < 1 {
		return 0, false, ErrInvalidQuantity
	}

	granted, duplicate, err = s.DB.RecordSale(ctx, eventID, paymentRef, quantity)
	if err != nil {
		return 0, false, err
	}

	switch {
	case duplicate:
		s.logger.Info("POPUP", fmt.Sprintf("replayed sale %s for event %s, keeping %d seats", paymentRef, eventID, granted))
	case granted < quantity:
		s.logger.Warn("POPUP", fmt.Sprintf("event %s short on seats: wanted %d, granted %d (payment %s)", eventID, quantity, granted, paymentRef))
	default:
		s.logger.Info("POPUP", fmt.Sprintf("sold %d seats of event %s (payment %s)", granted, eventID, paymentRef))
	}
	return granted, duplicate, nil
}

func (s *Service) AdjustSeats(ctx context.Context, id string, delta int) error {
	if err := s.DB.AdjustSeats(ctx, id, delta); err != nil {
		return err
	}
	s.logger.Info("POPUP", fmt.Sprintf("adjusted seats of event %s by %+d", id, delta))
	return nil
}
