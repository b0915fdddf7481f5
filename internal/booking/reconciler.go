package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/giftcard"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/notify"
	popupdb "ms-booking/internal/popup/db"
	"ms-booking/internal/utils"

	"github.com/google/uuid"
)

type GiftCardIssuer interface {
	Issue(ctx context.Context, paymentRef string, faceValueCents int64, buyer models.CustomerDetails, recipientName, recipientEmail string) (*models.GiftCard, bool, error)
}

type PopupSeller interface {
	Get(ctx context.Context, id string) (*models.PopupEvent, error)
	RecordPurchase(ctx context.Context, eventID, paymentRef string, quantity int) (granted int, duplicate bool, err error)
}

type Alerts interface {
	BookingConfirmed(ctx context.Context, res *models.Reservation) error
	BookingConflict(ctx context.Context, event notify.BookingConflictEvent) error
	GiftCardIssued(ctx context.Context, card *models.GiftCard) error
	PopupSold(ctx context.Context, event *models.PopupEvent, paymentRef string, requested, granted int, customerEmail string) error
}

// Reconciler applies verified payment notices to storage. Money has already
// moved by the time a notice arrives, so this code never rejects one: every
// branch ends in a durable record, a duplicate no-op, or a conflict alert
// for a human. An error return means only that a retry might succeed.
type Reconciler struct {
	DB           DBLayer
	Availability Availability
	GiftCards    GiftCardIssuer
	Popup        PopupSeller
	Notify       Alerts
	logger       *logger.Logger
}

func NewReconciler(dbLayer DBLayer, avail Availability, cards GiftCardIssuer, popup PopupSeller, alerts Alerts, log *logger.Logger) *Reconciler {
	return &Reconciler{
		DB:           dbLayer,
		Availability: avail,
		GiftCards:    cards,
		Popup:        popup,
		Notify:       alerts,
		logger:       log,
	}
}

// Process routes one notice by purchase kind. Safe to call any number of
// times with the same notice; replays resolve to no-ops in storage.
func (r *Reconciler) Process(ctx context.Context, notice *models.PaymentNotice) error {
	if notice == nil {
		return nil
	}

	switch notice.Kind {
	case models.KindReservation:
		return r.reconcileReservation(ctx, notice)
	case models.KindGiftCard:
		return r.reconcileGiftCard(ctx, notice)
	case models.KindPopupEvent:
		return r.reconcilePopup(ctx, notice)
	default:
		r.logger.Error("RECONCILE", fmt.Sprintf("Payment %s carries unrecognized purchase kind %q, manual fix required", notice.PaymentRef, notice.Kind))
		r.alertConflict(ctx, nil, notice, "unrecognized purchase kind")
		return nil
	}
}

func (r *Reconciler) reconcileReservation(ctx context.Context, notice *models.PaymentNotice) error {
	var id string
	if notice.Reservation != nil {
		id = notice.Reservation.ReservationID
	}
	if id == "" {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Notice %s carries no reservation id, synthesizing", notice.PaymentRef))
		return r.synthesizeReservation(ctx, notice)
	}

	res, err := r.DB.GetByID(ctx, id)
	if errors.Is(err, db.ErrReservationNotFound) {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Reservation %s missing for settled payment %s, synthesizing", id, notice.PaymentRef))
		return r.synthesizeReservation(ctx, notice)
	}
	if err != nil {
		return fmt.Errorf("failed to load reservation %s: %w", id, err)
	}

	switch {
	case res.Status == models.ReservationConfirmed && res.PaymentRef == notice.PaymentRef:
		r.logger.LogWebhook("DUPLICATE", notice.PaymentRef, fmt.Sprintf("reservation %s already confirmed", res.ID))
		return nil
	case res.Status == models.ReservationCanceled:
		r.alertConflict(ctx, res, notice, "payment settled for a canceled reservation, refund required")
		return nil
	case res.Status == models.ReservationConfirmed:
		r.alertConflict(ctx, res, notice, "reservation already confirmed under a different payment")
		return nil
	}

	// Still pending. The dates may have been taken by a manual booking or a
	// blackout while the customer sat on the payment page.
	fits, err := r.Availability.RangeFits(ctx, res.StartDate, res.EndDate, res.ID)
	if err != nil {
		return fmt.Errorf("failed to check availability for %s: %w", res.ID, err)
	}
	if !fits {
		// Keep the ref on the row so the money stays traceable, but leave the
		// reservation pending; confirming would double-book the calendar.
		if err := r.DB.AttachPaymentRef(ctx, res.ID, notice.PaymentRef); err != nil {
			r.logger.Warn("RECONCILE", fmt.Sprintf("Could not attach payment ref to %s: %v", res.ID, err))
		}
		r.alertConflict(ctx, res, notice, "dates taken before payment settled, refund required")
		return nil
	}

	rows, err := r.DB.ConfirmByID(ctx, res.ID, notice.PaymentRef, notice.Customer)
	if err != nil {
		return fmt.Errorf("failed to confirm reservation %s: %w", res.ID, err)
	}
	if rows == 0 {
		// Lost a race between our read and the guarded update. Re-read once
		// to tell a concurrent replay from a real conflict.
		current, err := r.DB.GetByID(ctx, res.ID)
		if err != nil {
			return fmt.Errorf("failed to re-read reservation %s: %w", res.ID, err)
		}
		if current.Status == models.ReservationConfirmed && current.PaymentRef == notice.PaymentRef {
			r.logger.LogWebhook("DUPLICATE", notice.PaymentRef, fmt.Sprintf("reservation %s confirmed concurrently", res.ID))
			return nil
		}
		r.alertConflict(ctx, current, notice, "reservation changed while confirming")
		return nil
	}

	r.Availability.InvalidateRange(ctx, res.StartDate, res.EndDate)
	r.logger.LogBooking("CONFIRM", res.ID, fmt.Sprintf("payment %s settled", notice.PaymentRef))

	confirmed, err := r.DB.GetByID(ctx, res.ID)
	if err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Confirmed %s but could not re-read it for the event payload: %v", res.ID, err))
		return nil
	}
	if err := r.Notify.BookingConfirmed(ctx, confirmed); err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Confirmation event for %s not published: %v", res.ID, err))
	}
	return nil
}

// synthesizeReservation rebuilds a confirmed reservation from the notice
// alone. The pending hold is gone (expired cleanup, manual delete, database
// restore) but the customer paid, so the booking must exist.
func (r *Reconciler) synthesizeReservation(ctx context.Context, notice *models.PaymentNotice) error {
	p := notice.Reservation
	if p == nil || p.StartDate.IsZero() || p.EndDate.IsZero() {
		r.logger.Error("RECONCILE", fmt.Sprintf("Payment %s settled but metadata has no usable dates, manual fix required", notice.PaymentRef))
		r.alertConflict(ctx, nil, notice, "settled payment with no matching reservation and no usable dates")
		return nil
	}

	existing, err := r.DB.GetByPaymentRef(ctx, notice.PaymentRef)
	if err == nil {
		r.logger.LogWebhook("DUPLICATE", notice.PaymentRef, fmt.Sprintf("already applied to reservation %s", existing.ID))
		return nil
	}
	if !errors.Is(err, db.ErrReservationNotFound) {
		return fmt.Errorf("failed to look up payment ref %s: %w", notice.PaymentRef, err)
	}

	id := p.ReservationID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	res := models.Reservation{
		ID:            id,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Status:        models.ReservationConfirmed,
		Channel:       models.ChannelOnline,
		CustomerName:  notice.Customer.Name,
		CustomerEmail: notice.Customer.Email,
		CustomerPhone: notice.Customer.Phone,
		PostalCode:    notice.Customer.PostalCode,
		Address:       notice.Customer.Address,
		PackageCode:   p.PackageCode,
		PartySize:     p.PartySize,
		DepositCents:  notice.AmountCents,
		PaymentRef:    notice.PaymentRef,
		Notes:         "synthesized from payment notice, original hold missing",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	fits, err := r.Availability.RangeFits(ctx, res.StartDate, res.EndDate, res.ID)
	if err != nil {
		return fmt.Errorf("failed to check availability for synthesized %s: %w", res.ID, err)
	}

	if err := r.DB.UpsertConfirmed(ctx, res); err != nil {
		return fmt.Errorf("failed to synthesize reservation for %s: %w", notice.PaymentRef, err)
	}
	r.Availability.InvalidateRange(ctx, res.StartDate, res.EndDate)
	r.logger.LogBooking("SYNTHESIZE", res.ID, fmt.Sprintf("rebuilt confirmed reservation from payment %s", notice.PaymentRef))

	// The paid booking is written even when the dates collided; the alert
	// hands the double booking to a human instead of hiding the money.
	if !fits {
		r.alertConflict(ctx, &res, notice, "synthesized reservation overlaps an existing booking")
	}

	if err := r.Notify.BookingConfirmed(ctx, &res); err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Confirmation event for %s not published: %v", res.ID, err))
	}
	return nil
}

func (r *Reconciler) reconcileGiftCard(ctx context.Context, notice *models.PaymentNotice) error {
	face := notice.AmountCents
	var recipientName, recipientEmail string
	if notice.GiftCard != nil {
		if notice.GiftCard.FaceValueCents > 0 {
			face = notice.GiftCard.FaceValueCents
		}
		recipientName = notice.GiftCard.RecipientName
		recipientEmail = notice.GiftCard.RecipientEmail
	}

	card, duplicate, err := r.GiftCards.Issue(ctx, notice.PaymentRef, face, notice.Customer, recipientName, recipientEmail)
	if errors.Is(err, giftcard.ErrInvalidFaceValue) {
		r.logger.Error("RECONCILE", fmt.Sprintf("Payment %s settled with non-positive gift card value %d, manual fix required", notice.PaymentRef, face))
		r.alertConflict(ctx, nil, notice, "gift card payment with non-positive value")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to issue gift card for %s: %w", notice.PaymentRef, err)
	}
	if duplicate {
		r.logger.LogWebhook("DUPLICATE", notice.PaymentRef, fmt.Sprintf("gift card %s already issued", card.Code))
		return nil
	}

	if err := r.Notify.GiftCardIssued(ctx, card); err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Gift card event for %s not published: %v", card.Code, err))
	}
	return nil
}

func (r *Reconciler) reconcilePopup(ctx context.Context, notice *models.PaymentNotice) error {
	if notice.Popup == nil || notice.Popup.EventID == "" || notice.Popup.Quantity < 1 {
		r.logger.Error("RECONCILE", fmt.Sprintf("Payment %s settled with unusable pop-up metadata, manual fix required", notice.PaymentRef))
		r.alertConflict(ctx, nil, notice, "pop-up payment with unusable metadata")
		return nil
	}

	granted, duplicate, err := r.Popup.RecordPurchase(ctx, notice.Popup.EventID, notice.PaymentRef, notice.Popup.Quantity)
	if errors.Is(err, popupdb.ErrEventNotFound) {
		r.logger.Error("RECONCILE", fmt.Sprintf("Payment %s settled for unknown pop-up event %s", notice.PaymentRef, notice.Popup.EventID))
		r.alertConflict(ctx, nil, notice, "pop-up payment for an unknown event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record pop-up purchase for %s: %w", notice.PaymentRef, err)
	}
	if duplicate {
		r.logger.LogWebhook("DUPLICATE", notice.PaymentRef, "pop-up purchase already recorded")
		return nil
	}

	if granted < notice.Popup.Quantity {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Pop-up %s short on seats: wanted %d, granted %d for payment %s", notice.Popup.EventID, notice.Popup.Quantity, granted, notice.PaymentRef))
	}
	if granted == 0 {
		r.alertConflict(ctx, nil, notice, "pop-up sold out before payment settled, refund required")
	}

	event, err := r.Popup.Get(ctx, notice.Popup.EventID)
	if err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Could not load pop-up %s for the event payload: %v", notice.Popup.EventID, err))
		return nil
	}
	if err := r.Notify.PopupSold(ctx, event, notice.PaymentRef, notice.Popup.Quantity, granted, notice.Customer.Email); err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Pop-up event for %s not published: %v", notice.PaymentRef, err))
	}
	return nil
}

func (r *Reconciler) alertConflict(ctx context.Context, res *models.Reservation, notice *models.PaymentNotice, reason string) {
	event := notify.BookingConflictEvent{
		PaymentRef: notice.PaymentRef,
		Reason:     reason,
	}
	if res != nil {
		event.ReservationID = res.ID
		event.StartDate = utils.FormatDay(res.StartDate)
		event.EndDate = utils.FormatDay(res.EndDate)
		event.CustomerEmail = res.CustomerEmail
	}
	if event.CustomerEmail == "" {
		event.CustomerEmail = notice.Customer.Email
	}

	r.logger.Error("RECONCILE", fmt.Sprintf("Conflict on payment %s: %s", notice.PaymentRef, reason))
	if err := r.Notify.BookingConflict(ctx, event); err != nil {
		r.logger.Warn("RECONCILE", fmt.Sprintf("Conflict event for %s not published: %v", notice.PaymentRef, err))
	}
}
