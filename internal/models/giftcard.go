package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GiftCardStatus string

const (
	GiftCardActive   GiftCardStatus = "active"
	GiftCardRedeemed GiftCardStatus = "redeemed"
)

// GiftCard is minted by the reconciler after a settled purchase. PaymentRef
// is unique so a replayed notification returns the already-minted card.
type GiftCard struct {
	bun.BaseModel `bun:"table:gift_cards"`

	Code           string         `bun:"code,pk" json:"code"`
	PaymentRef     string         `bun:"payment_ref,unique,notnull" json:"payment_ref"`
	FaceValueCents int64          `bun:"face_value_cents,notnull" json:"face_value_cents"`
	RemainingCents int64          `bun:"remaining_cents,notnull" json:"remaining_cents"`
	BuyerName      string         `bun:"buyer_name,nullzero" json:"buyer_name,omitempty"`
	BuyerEmail     string         `bun:"buyer_email,nullzero" json:"buyer_email,omitempty"`
	RecipientName  string         `bun:"recipient_name,nullzero" json:"recipient_name,omitempty"`
	RecipientEmail string         `bun:"recipient_email,nullzero" json:"recipient_email,omitempty"`
	Status         GiftCardStatus `bun:"status,notnull" json:"status"`
	IssuedAt       time.Time      `bun:"issued_at,notnull" json:"issued_at"`
	RedeemedAt     time.Time      `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
}
