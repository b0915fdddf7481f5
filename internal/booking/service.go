package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/antiabuse"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/pricing"
	"ms-booking/internal/utils"

	"github.com/google/uuid"
)

// ValidationError rejects a request before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError reports dates or seats that are no longer available.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

type DBLayer interface {
	Create(ctx context.Context, reservation models.Reservation) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Reservation, error)
	AttachPaymentRef(ctx context.Context, id, paymentRef string) error
	ConfirmByID(ctx context.Context, id, paymentRef string, customer models.CustomerDetails) (int64, error)
	UpsertConfirmed(ctx context.Context, reservation models.Reservation) error
	Cancel(ctx context.Context, id string) error
	ListRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// Availability is the month view plus the per-range capacity check, with
// cache invalidation for mutations. Implemented by availability.Cache.
type Availability interface {
	BlockedDays(ctx context.Context, year int, month time.Month) ([]string, error)
	RangeFits(ctx context.Context, start, end time.Time, excludeID string) (bool, error)
	InvalidateRange(ctx context.Context, start, end time.Time)
}

type CheckoutGateway interface {
	StartReservationCheckout(res *models.Reservation) (*payment.Session, error)
	StartGiftCardCheckout(req models.GiftCardCheckoutRequest) (*payment.Session, error)
	StartPopupCheckout(event *models.PopupEvent, quantity int, email string) (*payment.Session, error)
}

type AbuseVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// PopupCatalog is the slice of the popup service checkout needs.
type PopupCatalog interface {
	Get(ctx context.Context, id string) (*models.PopupEvent, error)
}

// Service owns reservation intake and the admin calendar operations. The
// confirmation side lives in Reconciler; the two share the store.
type Service struct {
	DB           DBLayer
	Availability Availability
	Pricing      *pricing.Engine
	Payments     CheckoutGateway
	AntiAbuse    AbuseVerifier
	Popup        PopupCatalog
	cfg          config.BookingConfig
	logger       *logger.Logger
}

func NewService(db DBLayer, avail Availability, engine *pricing.Engine, gateway CheckoutGateway, verifier AbuseVerifier, popup PopupCatalog, cfg config.BookingConfig, log *logger.Logger) *Service {
	return &Service{
		DB:           db,
		Availability: avail,
		Pricing:      engine,
		Payments:     gateway,
		AntiAbuse:    verifier,
		Popup:        popup,
		cfg:          cfg,
		logger:       log,
	}
}

// Quote prices a request without touching storage.
func (s *Service) Quote(req models.QuoteRequest) (*models.QuoteResponse, error) {
	params := pricing.QuoteParams{
		PackageCode: req.PackageCode,
		PartySize:   req.PartySize,
		Addons:      req.Addons,
		AccessCode:  req.AccessCode,
	}
	if req.Date != "" {
		day, err := utils.ParseDay(req.Date)
		if err != nil {
			return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
		params.Date = day
	}

	quote, err := s.Pricing.Quote(params)
	if err != nil {
		return nil, pricingValidationError(err)
	}

	return &models.QuoteResponse{
		PackageCode:   quote.PackageCode,
		PartySize:     quote.PartySize,
		Addons:        quote.Addons,
		SubtotalCents: quote.SubtotalCents,
		AddonCents:    quote.AddonCents,
		DepositCents:  quote.DepositCents,
		BalanceCents:  quote.BalanceCents,
	}, nil
}

// CreateBooking turns a booking request into a pending hold plus a redirect
// to the processor's payment page. The hold only becomes real when the
// reconciler sees the settled payment; until then it blocks nobody.
func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest, remoteIP string) (*models.CheckoutResponse, error) {
	if err := s.verifyAbuseToken(ctx, req.AbuseToken, remoteIP); err != nil {
		return nil, err
	}

	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if start.Before(utils.DayUTC(time.Now())) {
		return nil, &ValidationError{Field: "start_date", Reason: "date is in the past"}
	}
	if req.CustomerName == "" {
		return nil, &ValidationError{Field: "customer_name", Reason: "required"}
	}
	if req.CustomerEmail == "" {
		return nil, &ValidationError{Field: "customer_email", Reason: "required"}
	}
	if err := s.checkServiceArea(req.PostalCode); err != nil {
		return nil, err
	}

	quote, err := s.Pricing.Quote(pricing.QuoteParams{
		PackageCode: req.PackageCode,
		PartySize:   req.PartySize,
		Date:        start,
		Addons:      req.Addons,
		AccessCode:  req.AccessCode,
	})
	if err != nil {
		return nil, pricingValidationError(err)
	}

	fits, err := s.Availability.RangeFits(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !fits {
		return nil, &ConflictError{Reason: "requested dates are not available"}
	}

	now := time.Now().UTC()
	reservation := models.Reservation{
		ID:            uuid.New().String(),
		StartDate:     start,
		EndDate:       end,
		Status:        models.ReservationPending,
		Channel:       models.ChannelOnline,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PostalCode:    req.PostalCode,
		Address:       req.Address,
		PackageCode:   quote.PackageCode,
		PartySize:     quote.PartySize,
		Addons:        quote.Addons,
		SubtotalCents: quote.SubtotalCents,
		AddonCents:    quote.AddonCents,
		DepositCents:  quote.DepositCents,
		BalanceCents:  quote.BalanceCents,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.DB.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	s.logger.LogBooking("CREATE", reservation.ID,
		fmt.Sprintf("pending %s to %s for %s", utils.FormatDay(start), utils.FormatDay(end), req.CustomerEmail))

	session, err := s.Payments.StartReservationCheckout(&reservation)
	if err != nil {
		// The pending row stays behind; it never blocks availability and the
		// admin cleanup path removes it.
		s.logger.Error("BOOKING", fmt.Sprintf("Checkout handoff failed for %s, pending row orphaned: %v", reservation.ID, err))
		return nil, fmt.Errorf("payment handoff failed: %w", err)
	}

	// Best effort: the reconciler attaches the ref on confirmation anyway.
	if err := s.DB.AttachPaymentRef(ctx, reservation.ID, session.ID); err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("Could not record session id on %s: %v", reservation.ID, err))
	}

	return &models.CheckoutResponse{
		ReservationID: reservation.ID,
		RedirectURL:   session.URL,
	}, nil
}

// StartGiftCardCheckout opens a payment session for a gift card. No row is
// written here: the card is minted by the reconciler from the settled
// payment, so an abandoned checkout leaves nothing behind.
func (s *Service) StartGiftCardCheckout(ctx context.Context, req models.GiftCardCheckoutRequest, remoteIP string) (*models.CheckoutResponse, error) {
	if err := s.verifyAbuseToken(ctx, req.AbuseToken, remoteIP); err != nil {
		return nil, err
	}
	if req.FaceValueCents < 1000 {
		return nil, &ValidationError{Field: "face_value_cents", Reason: "minimum gift card value is $10"}
	}
	if req.BuyerEmail == "" {
		return nil, &ValidationError{Field: "buyer_email", Reason: "required"}
	}

	session, err := s.Payments.StartGiftCardCheckout(req)
	if err != nil {
		return nil, fmt.Errorf("payment handoff failed: %w", err)
	}
	return &models.CheckoutResponse{RedirectURL: session.URL}, nil
}

// StartPopupCheckout opens a payment session for pop-up seats. Like gift
// cards there is no provisional row; seats are granted at reconciliation,
// clamped to whatever capacity is left.
func (s *Service) StartPopupCheckout(ctx context.Context, eventID string, req models.PopupCheckoutRequest, remoteIP string) (*models.CheckoutResponse, error) {
	if err := s.verifyAbuseToken(ctx, req.AbuseToken, remoteIP); err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if req.BuyerEmail == "" {
		return nil, &ValidationError{Field: "buyer_email", Reason: "required"}
	}

	event, err := s.Popup.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Sold >= event.Capacity {
		return nil, &ConflictError{Reason: "event is sold out"}
	}

	session, err := s.Payments.StartPopupCheckout(event, req.Quantity, req.BuyerEmail)
	if err != nil {
		return nil, fmt.Errorf("payment handoff failed: %w", err)
	}
	return &models.CheckoutResponse{RedirectURL: session.URL}, nil
}

// BlockedDays is the public month calendar.
func (s *Service) BlockedDays(ctx context.Context, year int, month time.Month) ([]string, error) {
	return s.Availability.BlockedDays(ctx, year, month)
}

// CreateManualReservation writes an already-confirmed row for bookings taken
// over the phone. No payment is involved; the calendar must have room.
func (s *Service) CreateManualReservation(ctx context.Context, req models.ManualReservationRequest, createdBy string) (*models.Reservation, error) {
	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if req.CustomerName == "" {
		return nil, &ValidationError{Field: "customer_name", Reason: "required"}
	}

	fits, err := s.Availability.RangeFits(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !fits {
		return nil, &ConflictError{Reason: "dates overlap a confirmed reservation or blackout"}
	}

	var quote *pricing.Quote
	if req.PackageCode != "" {
		quote, err = s.Pricing.Quote(pricing.QuoteParams{
			PackageCode: req.PackageCode,
			PartySize:   req.PartySize,
			Date:        start,
			Addons:      req.Addons,
		})
		if err != nil {
			return nil, pricingValidationError(err)
		}
	}

	now := time.Now().UTC()
	reservation := models.Reservation{
		ID:            uuid.New().String(),
		StartDate:     start,
		EndDate:       end,
		Status:        models.ReservationConfirmed,
		Channel:       models.ChannelManual,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PackageCode:   req.PackageCode,
		PartySize:     req.PartySize,
		Addons:        req.Addons,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if quote != nil {
		reservation.SubtotalCents = quote.SubtotalCents
		reservation.AddonCents = quote.AddonCents
		reservation.DepositCents = quote.DepositCents
		reservation.BalanceCents = quote.BalanceCents
	}

	if err := s.DB.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create manual reservation: %w", err)
	}
	s.Availability.InvalidateRange(ctx, start, end)

	s.logger.LogBooking("MANUAL_CREATE", reservation.ID,
		fmt.Sprintf("confirmed %s to %s by %s", utils.FormatDay(start), utils.FormatDay(end), createdBy))
	return &reservation, nil
}

// CancelReservation is the admin cleanup path for both orphaned pendings and
// confirmed bookings being refunded out of band.
func (s *Service) CancelReservation(ctx context.Context, id string) error {
	reservation, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DB.Cancel(ctx, id); err != nil {
		return err
	}
	s.Availability.InvalidateRange(ctx, reservation.StartDate, reservation.EndDate)

	s.logger.LogBooking("CANCEL", id, "canceled by admin")
	return nil
}

// ListReservations returns the admin calendar for one month, every status.
func (s *Service) ListReservations(ctx context.Context, year int, month time.Month) ([]models.Reservation, error) {
	from, to := utils.MonthWindow(year, month)
	return s.DB.ListRange(ctx, from, to)
}

func (s *Service) verifyAbuseToken(ctx context.Context, token, remoteIP string) error {
	err := s.AntiAbuse.Verify(ctx, token, remoteIP)
	if err == nil {
		return nil
	}
	if errors.Is(err, antiabuse.ErrTokenRejected) {
		return &ValidationError{Field: "abuse_token", Reason: "verification failed"}
	}
	return fmt.Errorf("abuse verification unavailable: %w", err)
}

func (s *Service) parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := utils.ParseDay(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
	}

	end := start.AddDate(0, 0, 1)
	if endDate != "" {
		end, err = utils.ParseDay(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
		}
	}
	return start, end, nil
}

func (s *Service) checkServiceArea(postalCode string) error {
	if len(s.cfg.ServiceAreaPrefixes) == 0 {
		return nil
	}

	normalized := strings.ToUpper(strings.ReplaceAll(postalCode, " ", ""))
	if normalized == "" {
		return &ValidationError{Field: "postal_code", Reason: "required"}
	}
	for _, prefix := range s.cfg.ServiceAreaPrefixes {
		if strings.HasPrefix(normalized, strings.ToUpper(prefix)) {
			return nil
		}
	}
	return &ValidationError{Field: "postal_code", Reason: "outside the service area"}
}

func pricingValidationError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrUnknownPackage):
		return &ValidationError{Field: "package_code", Reason: err.Error()}
	case errors.Is(err, pricing.ErrUnknownAddon):
		return &ValidationError{Field: "addons", Reason: err.Error()}
	case errors.Is(err, pricing.ErrInvalidPartySize):
		return &ValidationError{Field: "party_size", Reason: err.Error()}
	case errors.Is(err, pricing.ErrPackageRuleViolation):
		return &ValidationError{Field: "date", Reason: err.Error()}
	default:
		return err
	}
}
