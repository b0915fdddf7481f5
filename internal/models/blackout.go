package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BlackoutRange closes the venue for [StartDate, EndDate). StartDate is the
// primary key so re-submitting the same day updates in place instead of
// stacking duplicates.
type BlackoutRange struct {
	bun.BaseModel `bun:"table:blackout_ranges"`

	StartDate time.Time `bun:"start_date,pk" json:"start_date"`
	EndDate   time.Time `bun:"end_date,notnull" json:"end_date"`
	Reason    string    `bun:"reason" json:"reason"`
	CreatedBy string    `bun:"created_by,nullzero" json:"created_by,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
