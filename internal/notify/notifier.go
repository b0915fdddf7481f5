package notify

import (
	"context"
	"encoding/json"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Notifier turns reconciliation outcomes into Kafka events. The external
// mailer and the admin alerting pipeline consume these; nothing in this
// service reads them back.
type Notifier struct {
	Producer Publisher
	topics   config.TopicConfig
	logger   *logger.Logger
}

// NewNotifier returns a Notifier. A nil producer disables publishing, which
// keeps single-binary development setups working without a broker.
func NewNotifier(producer Publisher, topics config.TopicConfig, log *logger.Logger) *Notifier {
	return &Notifier{Producer: producer, topics: topics, logger: log}
}

type BookingConfirmedEvent struct {
	ReservationID string   `json:"reservation_id"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	PackageCode   string   `json:"package_code,omitempty"`
	PartySize     int      `json:"party_size,omitempty"`
	Addons        []string `json:"addons,omitempty"`
	CustomerName  string   `json:"customer_name,omitempty"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	DepositCents  int64    `json:"deposit_cents"`
	BalanceCents  int64    `json:"balance_cents"`
	PaymentRef    string   `json:"payment_ref"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

type BookingConflictEvent struct {
	ReservationID string `json:"reservation_id,omitempty"`
	PaymentRef    string `json:"payment_ref"`
	Reason        string `json:"reason"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	RaisedAt      string `json:"raised_at"`
}

type GiftCardIssuedEvent struct {
	Code           string `json:"code"`
	FaceValueCents int64  `json:"face_value_cents"`
	BuyerName      string `json:"buyer_name,omitempty"`
	BuyerEmail     string `json:"buyer_email,omitempty"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	PaymentRef     string `json:"payment_ref"`
}

type PopupSoldEvent struct {
	EventID           string `json:"event_id"`
	EventName         string `json:"event_name"`
	EventDate         string `json:"event_date"`
	PaymentRef        string `json:"payment_ref"`
	QuantityRequested int    `json:"quantity_requested"`
	QuantityGranted   int    `json:"quantity_granted"`
	CustomerEmail     string `json:"customer_email,omitempty"`
}

func (n *Notifier) BookingConfirmed(ctx context.Context, res *models.Reservation) error {
	event := BookingConfirmedEvent{
		ReservationID: res.ID,
		StartDate:     utils.FormatDay(res.StartDate),
		EndDate:       utils.FormatDay(res.EndDate),
		PackageCode:   res.PackageCode,
		PartySize:     res.PartySize,
		Addons:        res.Addons,
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		DepositCents:  res.DepositCents,
		BalanceCents:  res.BalanceCents,
		PaymentRef:    res.PaymentRef,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	return n.publish(ctx, n.topics.BookingConfirmed, res.ID, event)
}

func (n *Notifier) BookingConflict(ctx context.Context, event BookingConflictEvent) error {
	if event.RaisedAt == "" {
		event.RaisedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return n.publish(ctx, n.topics.BookingConflict, event.PaymentRef, event)
}

func (n *Notifier) GiftCardIssued(ctx context.Context, card *models.GiftCard) error {
	event := GiftCardIssuedEvent{
		Code:           card.Code,
		FaceValueCents: card.FaceValueCents,
		BuyerName:      card.BuyerName,
		BuyerEmail:     card.BuyerEmail,
		RecipientName:  card.RecipientName,
		RecipientEmail: card.RecipientEmail,
		PaymentRef:     card.PaymentRef,
	}
	return n.publish(ctx, n.topics.GiftCardIssued, card.Code, event)
}

func (n *Notifier) PopupSold(ctx context.Context, event *models.PopupEvent, paymentRef string, requested, granted int, customerEmail string) error {
	payload := PopupSoldEvent{
		EventID:           event.ID,
		EventName:         event.Name,
		EventDate:         utils.FormatDay(event.EventDate),
		PaymentRef:        paymentRef,
		QuantityRequested: requested,
		QuantityGranted:   granted,
		CustomerEmail:     customerEmail,
	}
	return n.publish(ctx, n.topics.PopupSold, event.ID, payload)
}

func (n *Notifier) publish(ctx context.Context, topic, key string, event any) error {
	if n.Producer == nil {
		n.logger.Debug("KAFKA", "Publishing disabled, dropping "+topic+" event")
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.Producer.Publish(ctx, topic, key, value)
}
