package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-booking/internal/antiabuse"
	"ms-booking/internal/booking"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDB struct {
	mock.Mock
}

func (m *MockDB) Create(ctx context.Context, reservation models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockDB) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockDB) GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Reservation, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockDB) AttachPaymentRef(ctx context.Context, id, paymentRef string) error {
	args := m.Called(ctx, id, paymentRef)
	return args.Error(0)
}

func (m *MockDB) ConfirmByID(ctx context.Context, id, paymentRef string, customer models.CustomerDetails) (int64, error) {
	args := m.Called(ctx, id, paymentRef, customer)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDB) UpsertConfirmed(ctx context.Context, reservation models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockDB) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDB) ListRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

type MockAvailability struct {
	mock.Mock
}

func (m *MockAvailability) BlockedDays(ctx context.Context, year int, month time.Month) ([]string, error) {
	args := m.Called(ctx, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAvailability) RangeFits(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	args := m.Called(ctx, start, end, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAvailability) InvalidateRange(ctx context.Context, start, end time.Time) {
	m.Called(ctx, start, end)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) StartReservationCheckout(res *models.Reservation) (*payment.Session, error) {
	args := m.Called(res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) StartGiftCardCheckout(req models.GiftCardCheckoutRequest) (*payment.Session, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) StartPopupCheckout(event *models.PopupEvent, quantity int, email string) (*payment.Session, error) {
	args := m.Called(event, quantity, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	args := m.Called(ctx, token, remoteIP)
	return args.Error(0)
}

type MockPopup struct {
	mock.Mock
}

func (m *MockPopup) Get(ctx context.Context, id string) (*models.PopupEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PopupEvent), args.Error(1)
}

func (m *MockPopup) RecordPurchase(ctx context.Context, eventID, paymentRef string, quantity int) (int, bool, error) {
	args := m.Called(ctx, eventID, paymentRef, quantity)
	return args.Int(0), args.Bool(1), args.Error(2)
}

type serviceDeps struct {
	db       *MockDB
	avail    *MockAvailability
	gateway  *MockGateway
	verifier *MockVerifier
	popup    *MockPopup
}

func newTestService(t *testing.T, cfg config.BookingConfig) (*booking.Service, *serviceDeps) {
	t.Helper()
	deps := &serviceDeps{
		db:       new(MockDB),
		avail:    new(MockAvailability),
		gateway:  new(MockGateway),
		verifier: new(MockVerifier),
		popup:    new(MockPopup),
	}
	engine := pricing.NewEngine(0.25, []string{"FRIENDS"})
	log := logger.NewLogger("booking-test")
	svc := booking.NewService(deps.db, deps.avail, engine, deps.gateway, deps.verifier, deps.popup, cfg, log)
	return svc, deps
}

func validBookingRequest() models.BookingRequest {
	return models.BookingRequest{
		StartDate:     "2030-06-12",
		EndDate:       "2030-06-14",
		PackageCode:   "family",
		PartySize:     6,
		CustomerName:  "Dana Whitfield",
		CustomerEmail: "dana@example.com",
		PostalCode:    "98105",
		AbuseToken:    "tok-ok",
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.verifier.On("Verify", ctx, "tok-ok", "203.0.113.9").Return(nil)
	deps.avail.On("RangeFits", ctx, mock.Anything, mock.Anything, "").Return(true, nil)
	deps.db.On("Create", ctx, mock.MatchedBy(func(res models.Reservation) bool {
		return res.Status == models.ReservationPending &&
			res.Channel == models.ChannelOnline &&
			res.StartDate.Format("2006-01-02") == "2030-06-12" &&
			res.EndDate.Format("2006-01-02") == "2030-06-14" &&
			res.SubtotalCents == 57000 &&
			res.DepositCents == 14250 &&
			res.BalanceCents == 42750
	})).Return(nil)
	deps.gateway.On("StartReservationCheckout", mock.Anything).
		Return(&payment.Session{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil)
	deps.db.On("AttachPaymentRef", ctx, mock.Anything, "cs_test_1").Return(nil)

	resp, err := svc.CreateBooking(ctx, validBookingRequest(), "203.0.113.9")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.ReservationID)
	assert.Equal(t, "https://pay.example/cs_test_1", resp.RedirectURL)
	deps.db.AssertExpectations(t)
	deps.gateway.AssertExpectations(t)
}

func TestCreateBookingRejectsPastDates(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)

	req := validBookingRequest()
	req.StartDate = "2020-01-05"
	req.EndDate = ""

	_, err := svc.CreateBooking(ctx, req, "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_date", verr.Field)
	deps.db.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBookingRejectsInvertedRange(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)

	req := validBookingRequest()
	req.EndDate = "2030-06-12"

	_, err := svc.CreateBooking(ctx, req, "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestCreateBookingRejectsUnknownPackage(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)

	req := validBookingRequest()
	req.PackageCode = "omakase"

	_, err := svc.CreateBooking(ctx, req, "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "package_code", verr.Field)
	deps.avail.AssertNotCalled(t, "RangeFits", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingConflictWhenRangeFull(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.avail.On("RangeFits", ctx, mock.Anything, mock.Anything, "").Return(false, nil)

	_, err := svc.CreateBooking(ctx, validBookingRequest(), "")

	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	deps.db.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBookingRejectedAbuseToken(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(antiabuse.ErrTokenRejected)

	_, err := svc.CreateBooking(ctx, validBookingRequest(), "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "abuse_token", verr.Field)
	deps.avail.AssertNotCalled(t, "RangeFits", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingOutsideServiceArea(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{ServiceAreaPrefixes: []string{"98"}})
	ctx := context.Background()
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)

	req := validBookingRequest()
	req.PostalCode = "10001"

	_, err := svc.CreateBooking(ctx, req, "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "postal_code", verr.Field)
}

func TestCreateBookingCheckoutFailureLeavesPendingRow(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.avail.On("RangeFits", ctx, mock.Anything, mock.Anything, "").Return(true, nil)
	deps.db.On("Create", ctx, mock.Anything).Return(nil)
	deps.gateway.On("StartReservationCheckout", mock.Anything).
		Return(nil, errors.New("stripe is down"))

	_, err := svc.CreateBooking(ctx, validBookingRequest(), "")

	require.Error(t, err)
	var verr *booking.ValidationError
	assert.False(t, errors.As(err, &verr), "gateway outage is not the caller's fault")
	// The pending row was written before the handoff failed and stays behind.
	deps.db.AssertCalled(t, "Create", ctx, mock.Anything)
	deps.db.AssertNotCalled(t, "AttachPaymentRef", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuotePricesWithoutTouchingStorage(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})

	resp, err := svc.Quote(models.QuoteRequest{
		PackageCode: "family",
		PartySize:   6,
		Addons:      []string{"oyster_service"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(75000), resp.SubtotalCents)
	assert.Equal(t, int64(18000), resp.AddonCents)
	assert.Equal(t, int64(18750), resp.DepositCents)
	assert.Equal(t, int64(56250), resp.BalanceCents)
	deps.db.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestQuoteRejectsUndersizedParty(t *testing.T) {
	svc, _ := newTestService(t, config.BookingConfig{})

	_, err := svc.Quote(models.QuoteRequest{PackageCode: "family", PartySize: 2})

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "party_size", verr.Field)
}

func TestStartGiftCardCheckoutEnforcesMinimum(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.StartGiftCardCheckout(ctx, models.GiftCardCheckoutRequest{
		FaceValueCents: 500,
		BuyerEmail:     "buyer@example.com",
	}, "")

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "face_value_cents", verr.Field)
	deps.gateway.AssertNotCalled(t, "StartGiftCardCheckout", mock.Anything)
}

func TestStartGiftCardCheckoutRedirects(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	req := models.GiftCardCheckoutRequest{
		FaceValueCents: 10000,
		BuyerName:      "Priya N",
		BuyerEmail:     "priya@example.com",
		RecipientName:  "Sam",
	}
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.gateway.On("StartGiftCardCheckout", req).
		Return(&payment.Session{ID: "cs_gc_1", URL: "https://pay.example/cs_gc_1"}, nil)

	resp, err := svc.StartGiftCardCheckout(ctx, req, "")

	require.NoError(t, err)
	assert.Empty(t, resp.ReservationID)
	assert.Equal(t, "https://pay.example/cs_gc_1", resp.RedirectURL)
}

func TestStartPopupCheckoutSoldOut(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.popup.On("Get", ctx, "pe-1").Return(&models.PopupEvent{ID: "pe-1", Capacity: 40, Sold: 40}, nil)

	_, err := svc.StartPopupCheckout(ctx, "pe-1", models.PopupCheckoutRequest{
		Quantity:   2,
		BuyerEmail: "kai@example.com",
	}, "")

	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	deps.gateway.AssertNotCalled(t, "StartPopupCheckout", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartPopupCheckoutRedirects(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	event := &models.PopupEvent{ID: "pe-1", Name: "Harvest Dinner", Capacity: 40, Sold: 38}
	deps.verifier.On("Verify", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.popup.On("Get", ctx, "pe-1").Return(event, nil)
	deps.gateway.On("StartPopupCheckout", event, 2, "kai@example.com").
		Return(&payment.Session{ID: "cs_pe_1", URL: "https://pay.example/cs_pe_1"}, nil)

	resp, err := svc.StartPopupCheckout(ctx, "pe-1", models.PopupCheckoutRequest{
		Quantity:   2,
		BuyerEmail: "kai@example.com",
	}, "")

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_pe_1", resp.RedirectURL)
}

func TestManualReservationConfirmsImmediately(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.avail.On("RangeFits", ctx, mock.Anything, mock.Anything, "").Return(true, nil)
	deps.db.On("Create", ctx, mock.MatchedBy(func(res models.Reservation) bool {
		return res.Status == models.ReservationConfirmed && res.Channel == models.ChannelManual
	})).Return(nil)
	deps.avail.On("InvalidateRange", ctx, mock.Anything, mock.Anything).Return()

	res, err := svc.CreateManualReservation(ctx, models.ManualReservationRequest{
		StartDate:    "2030-07-01",
		EndDate:      "2030-07-03",
		PackageCode:  "family",
		PartySize:    8,
		CustomerName: "Walk-in Wedding",
	}, "ops@venue")

	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)
	assert.Equal(t, int64(76000), res.SubtotalCents)
	deps.avail.AssertCalled(t, "InvalidateRange", ctx, mock.Anything, mock.Anything)
}

func TestManualReservationRefusesTakenDates(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	deps.avail.On("RangeFits", ctx, mock.Anything, mock.Anything, "").Return(false, nil)

	_, err := svc.CreateManualReservation(ctx, models.ManualReservationRequest{
		StartDate:    "2030-07-01",
		CustomerName: "Walk-in",
	}, "ops@venue")

	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	deps.db.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCancelReservationInvalidatesCalendar(t *testing.T) {
	svc, deps := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	start := time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	deps.db.On("GetByID", ctx, "res-9").
		Return(&models.Reservation{ID: "res-9", StartDate: start, EndDate: end}, nil)
	deps.db.On("Cancel", ctx, "res-9").Return(nil)
	deps.avail.On("InvalidateRange", ctx, start, end).Return()

	err := svc.CancelReservation(ctx, "res-9")

	require.NoError(t, err)
	deps.avail.AssertExpectations(t)
}
