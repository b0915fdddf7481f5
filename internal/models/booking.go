package models

// Request/response shapes for the public and admin HTTP surface. Dates on the
// wire are "YYYY-MM-DD" strings; money is integer cents.

type QuoteRequest struct {
	PackageCode string   `json:"package_code"`
	PartySize   int      `json:"party_size"`
	Date        string   `json:"date"`
	Addons      []string `json:"addons,omitempty"`
	AccessCode  string   `json:"access_code,omitempty"`
}

type QuoteResponse struct {
	PackageCode   string   `json:"package_code"`
	PartySize     int      `json:"party_size"`
	Addons        []string `json:"addons,omitempty"`
	SubtotalCents int64    `json:"subtotal_cents"`
	AddonCents    int64    `json:"addon_cents"`
	DepositCents  int64    `json:"deposit_cents"`
	BalanceCents  int64    `json:"balance_cents"`
}

type BookingRequest struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date,omitempty"`
	PackageCode   string   `json:"package_code"`
	PartySize     int      `json:"party_size"`
	Addons        []string `json:"addons,omitempty"`
	AccessCode    string   `json:"access_code,omitempty"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone,omitempty"`
	PostalCode    string   `json:"postal_code"`
	Address       string   `json:"address,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	AbuseToken    string   `json:"abuse_token,omitempty"`
}

// CheckoutResponse points the caller at the processor's hosted payment page.
type CheckoutResponse struct {
	ReservationID string `json:"reservation_id,omitempty"`
	RedirectURL   string `json:"redirect_url"`
}

type GiftCardCheckoutRequest struct {
	FaceValueCents int64  `json:"face_value_cents"`
	BuyerName      string `json:"buyer_name"`
	BuyerEmail     string `json:"buyer_email"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	AbuseToken     string `json:"abuse_token,omitempty"`
}

type PopupCheckoutRequest struct {
	Quantity   int    `json:"quantity"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	AbuseToken string `json:"abuse_token,omitempty"`
}

type ManualReservationRequest struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date,omitempty"`
	PackageCode   string   `json:"package_code"`
	PartySize     int      `json:"party_size"`
	Addons        []string `json:"addons,omitempty"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	CustomerPhone string   `json:"customer_phone,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type BlackoutRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Reason    string `json:"reason"`
}

type BulkBlackoutRequest struct {
	Dates  []string `json:"dates"`
	Reason string   `json:"reason"`
}

type AvailabilityResponse struct {
	Year    int      `json:"year"`
	Month   int      `json:"month"`
	Blocked []string `json:"blocked"`
}

type PopupCreateRequest struct {
	Name       string `json:"name"`
	EventDate  string `json:"event_date"`
	Capacity   int    `json:"capacity"`
	PriceCents int64  `json:"price_cents"`
}

type SeatAdjustRequest struct {
	Delta int `json:"delta"`
}
