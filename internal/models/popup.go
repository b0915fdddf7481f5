package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PopupEvent struct {
	bun.BaseModel `bun:"table:popup_events"`

	ID         string    `bun:"id,pk" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	EventDate  time.Time `bun:"event_date,notnull" json:"event_date"`
	Capacity   int       `bun:"capacity,notnull" json:"capacity"`
	Sold       int       `bun:"sold,notnull" json:"sold"`
	PriceCents int64     `bun:"price_cents,notnull" json:"price_cents"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// PopupSale is the durable record of one settled payment against one event.
// The composite key (event_id, payment_ref) is the replay guard: a second
// delivery of the same notification inserts nothing.
type PopupSale struct {
	bun.BaseModel `bun:"table:popup_sales"`

	EventID    string    `bun:"event_id,pk" json:"event_id"`
	PaymentRef string    `bun:"payment_ref,pk" json:"payment_ref"`
	Quantity   int       `bun:"quantity,notnull" json:"quantity"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}
