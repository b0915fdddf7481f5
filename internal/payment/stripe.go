package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Session is the slice of a Stripe Checkout session the rest of the service
// cares about: the reference we store and the URL the guest is sent to.
type Session struct {
	ID  string
	URL string
}

// Checkout wraps Stripe Checkout session creation and webhook decoding. The
// same metadata keys are written at checkout time and read back when the
// payment notification arrives, so the two sides cannot drift apart.
type Checkout struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
	logger        *logger.Logger
}

func NewCheckout(cfg config.StripeConfig, log *logger.Logger) *Checkout {
	stripe.Key = cfg.SecretKey
	return &Checkout{
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		currency:      cfg.Currency,
		logger:        log,
	}
}

// StartReservationCheckout opens a Checkout session charging the deposit for
// a pending reservation.
func (c *Checkout) StartReservationCheckout(res *models.Reservation) (*Session, error) {
	params := c.sessionParams(
		fmt.Sprintf("Reservation deposit %s to %s", utils.FormatDay(res.StartDate), utils.FormatDay(res.EndDate)),
		res.DepositCents,
		1,
	)
	if res.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(res.CustomerEmail)
	}
	params.AddMetadata("purchase_kind", string(models.KindReservation))
	params.AddMetadata("reservation_id", res.ID)
	params.AddMetadata("start_date", utils.FormatDay(res.StartDate))
	params.AddMetadata("end_date", utils.FormatDay(res.EndDate))
	params.AddMetadata("package_code", res.PackageCode)
	params.AddMetadata("party_size", strconv.Itoa(res.PartySize))

	return c.create(params, fmt.Sprintf("reservation %s", res.ID))
}

// StartGiftCardCheckout opens a Checkout session charging the card's full
// face value.
func (c *Checkout) StartGiftCardCheckout(req models.GiftCardCheckoutRequest) (*Session, error) {
	params := c.sessionParams("Gift card", req.FaceValueCents, 1)
	if req.BuyerEmail != "" {
		params.CustomerEmail = stripe.String(req.BuyerEmail)
	}
	params.AddMetadata("purchase_kind", string(models.KindGiftCard))
	params.AddMetadata("face_value_cents", strconv.FormatInt(req.FaceValueCents, 10))
	params.AddMetadata("recipient_name", req.RecipientName)
	params.AddMetadata("recipient_email", req.RecipientEmail)

	return c.create(params, "gift card purchase")
}

// StartPopupCheckout opens a Checkout session for pop-up event seats.
func (c *Checkout) StartPopupCheckout(event *models.PopupEvent, quantity int, email string) (*Session, error) {
	params := c.sessionParams(event.Name, event.PriceCents, int64(quantity))
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("purchase_kind", string(models.KindPopupEvent))
	params.AddMetadata("event_id", event.ID)
	params.AddMetadata("quantity", strconv.Itoa(quantity))

	return c.create(params, fmt.Sprintf("popup event %s", event.ID))
}

func (c *Checkout) sessionParams(productName string, unitAmount, quantity int64) *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.currency),
					UnitAmount: stripe.Int64(unitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
	}
}

func (c *Checkout) create(params *stripe.CheckoutSessionParams, what string) (*Session, error) {
	sess, err := session.New(params)
	if err != nil {
		c.logger.Error("PAYMENT", fmt.Sprintf("Failed to create checkout session for %s: %v", what, err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	c.logger.Info("PAYMENT", fmt.Sprintf("Created checkout session %s for %s", sess.ID, what))
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// WebhookError carries enough context for the HTTP layer to pick a status
// code without leaking internals to the caller.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// ParseWebhook verifies a Stripe webhook delivery and turns a settled
// Checkout session into a PaymentNotice. Events that carry no settled payment
// return (nil, nil); the caller acknowledges them so Stripe stops retrying.
func (c *Checkout) ParseWebhook(payload []byte, sigHeader string) (*models.PaymentNotice, error) {
	if c.webhookSecret == "" {
		c.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, opts)
	if err != nil {
		var errorCategory, errorMessage string
		if stripeErr, ok := err.(*stripe.Error); ok {
			switch stripeErr.Code {
			case "signature_verification_failed":
				errorCategory = "validation"
				errorMessage = "Webhook signature verification failed"
			default:
				errorCategory = "processing"
				errorMessage = "Stripe API error"
			}
		} else {
			errorCategory = "validation"
			errorMessage = "Invalid webhook signature"
		}

		c.logger.Error("WEBHOOK", fmt.Sprintf("%s: %v", errorMessage, err))
		return nil, &WebhookError{
			Category:      errorCategory,
			StatusCode:    http.StatusBadRequest,
			PublicError:   errorMessage,
			InternalError: fmt.Sprintf("%s: %v", errorMessage, err),
			OriginalErr:   err,
		}
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			c.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}

		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			c.logger.Info("WEBHOOK", fmt.Sprintf("Session %s completed but not yet paid, waiting for async settlement", sess.ID))
			return nil, nil
		}

		c.logger.LogWebhook(string(event.Type), sess.ID, "Settled checkout session received")
		return c.noticeFromSession(&sess), nil

	default:
		c.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return nil, nil
	}
}

// noticeFromSession is intentionally lenient: metadata written at checkout
// time should always parse, but a half-broken notice must still reach the
// reconciler so a human gets alerted instead of Stripe retrying forever.
func (c *Checkout) noticeFromSession(sess *stripe.CheckoutSession) *models.PaymentNotice {
	notice := &models.PaymentNotice{
		Kind:        models.PurchaseKind(sess.Metadata["purchase_kind"]),
		PaymentRef:  sess.ID,
		AmountCents: sess.AmountTotal,
	}

	if cd := sess.CustomerDetails; cd != nil {
		notice.Customer = models.CustomerDetails{
			Name:  cd.Name,
			Email: cd.Email,
			Phone: cd.Phone,
		}
		if cd.Address != nil {
			notice.Customer.PostalCode = cd.Address.PostalCode
			notice.Customer.Address = cd.Address.Line1
		}
	}

	switch notice.Kind {
	case models.KindReservation:
		purchase := &models.ReservationPurchase{
			ReservationID: sess.Metadata["reservation_id"],
			PackageCode:   sess.Metadata["package_code"],
		}
		if day, err := utils.ParseDay(sess.Metadata["start_date"]); err == nil {
			purchase.StartDate = day
		}
		if day, err := utils.ParseDay(sess.Metadata["end_date"]); err == nil {
			purchase.EndDate = day
		}
		if n, err := strconv.Atoi(sess.Metadata["party_size"]); err == nil {
			purchase.PartySize = n
		}
		notice.Reservation = purchase

	case models.KindGiftCard:
		purchase := &models.GiftCardPurchase{
			FaceValueCents: sess.AmountTotal,
			RecipientName:  sess.Metadata["recipient_name"],
			RecipientEmail: sess.Metadata["recipient_email"],
		}
		if v, err := strconv.ParseInt(sess.Metadata["face_value_cents"], 10, 64); err == nil {
			purchase.FaceValueCents = v
		}
		notice.GiftCard = purchase

	case models.KindPopupEvent:
		purchase := &models.PopupPurchase{
			EventID: sess.Metadata["event_id"],
		}
		if n, err := strconv.Atoi(sess.Metadata["quantity"]); err == nil {
			purchase.Quantity = n
		}
		notice.Popup = purchase
	}

	return notice
}
