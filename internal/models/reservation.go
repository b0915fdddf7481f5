package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCanceled  ReservationStatus = "canceled"
)

type ReservationChannel string

const (
	ChannelOnline ReservationChannel = "online"
	ChannelManual ReservationChannel = "manual"
)

// Reservation is a date-bound hold on the venue. Dates are UTC midnights and
// the range is half-open: [StartDate, EndDate). PaymentRef is the processor's
// correlation id; its uniqueness is what makes webhook replays harmless.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            string             `bun:"id,pk" json:"id"`
	StartDate     time.Time          `bun:"start_date,notnull" json:"start_date"`
	EndDate       time.Time          `bun:"end_date,notnull" json:"end_date"`
	Status        ReservationStatus  `bun:"status,notnull" json:"status"`
	Channel       ReservationChannel `bun:"channel,notnull" json:"channel"`
	CustomerName  string             `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CustomerEmail string             `bun:"customer_email,nullzero" json:"customer_email,omitempty"`
	CustomerPhone string             `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	PostalCode    string             `bun:"postal_code,nullzero" json:"postal_code,omitempty"`
	Address       string             `bun:"address,nullzero" json:"address,omitempty"`
	PackageCode   string             `bun:"package_code" json:"package_code"`
	PartySize     int                `bun:"party_size" json:"party_size"`
	Addons        []string           `bun:"addons" json:"addons,omitempty"`
	SubtotalCents int64              `bun:"subtotal_cents" json:"subtotal_cents"`
	AddonCents    int64              `bun:"addon_cents" json:"addon_cents"`
	DepositCents  int64              `bun:"deposit_cents" json:"deposit_cents"`
	BalanceCents  int64              `bun:"balance_cents" json:"balance_cents"`
	PaymentRef    string             `bun:"payment_ref,unique,nullzero" json:"payment_ref,omitempty"`
	Notes         string             `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt     time.Time          `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time          `bun:"updated_at,notnull" json:"updated_at"`
}
