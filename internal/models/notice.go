package models

import "time"

// PurchaseKind discriminates what a settled payment was for. It is carried in
// the checkout session metadata and resolved exactly once, when the raw
// notification is parsed into a PaymentNotice.
type PurchaseKind string

const (
	KindReservation PurchaseKind = "reservation"
	KindGiftCard    PurchaseKind = "gift_card"
	KindPopupEvent  PurchaseKind = "popup_event"
)

// CustomerDetails is the payer identity the processor reports with a
// completed checkout. Used to back-fill blank fields on the reservation.
type CustomerDetails struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Address    string `json:"address,omitempty"`
}

// PaymentNotice is the parsed form of a verified payment notification.
// Exactly one of Reservation, GiftCard or Popup is set, matching Kind.
type PaymentNotice struct {
	Kind        PurchaseKind         `json:"kind"`
	PaymentRef  string               `json:"payment_ref"`
	AmountCents int64                `json:"amount_cents"`
	Customer    CustomerDetails      `json:"customer"`
	Reservation *ReservationPurchase `json:"reservation,omitempty"`
	GiftCard    *GiftCardPurchase    `json:"gift_card,omitempty"`
	Popup       *PopupPurchase       `json:"popup,omitempty"`
}

// ReservationPurchase carries enough of the original intake to synthesize a
// confirmed reservation when the pending row has gone missing.
type ReservationPurchase struct {
	ReservationID string    `json:"reservation_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	PackageCode   string    `json:"package_code"`
	PartySize     int       `json:"party_size"`
}

type GiftCardPurchase struct {
	FaceValueCents int64  `json:"face_value_cents"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
}

type PopupPurchase struct {
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
}
