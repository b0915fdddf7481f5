package pricing

import (
	"errors"
	"math"
	"time"
)

var (
	ErrUnknownPackage       = errors.New("unknown package")
	ErrUnknownAddon         = errors.New("unknown add-on")
	ErrInvalidPartySize     = errors.New("party size not allowed for package")
	ErrPackageRuleViolation = errors.New("package not offered on that date")
)

// Package is one catalog entry. FloorWithCode is the reduced minimum that a
// valid access code unlocks (0 means no override exists); FixedParty pins the
// party size exactly; Weekdays empty means any day of the week.
type Package struct {
	Code          string
	Name          string
	PerGuestCents int64
	MinParty      int
	FloorWithCode int
	FixedParty    int
	Weekdays      []time.Weekday
}

type Addon struct {
	Code     string
	Name     string
	Cents    int64
	PerGuest bool
}

type Quote struct {
	PackageCode   string
	PartySize     int
	Addons        []string
	SubtotalCents int64
	AddonCents    int64
	DepositCents  int64
	BalanceCents  int64
}

type QuoteParams struct {
	PackageCode   string
	PartySize     int
	Date          time.Time
	Addons        []string
	AccessCode    string
	PerGuestCents int64 // non-zero replaces the catalog rate (admin quotes)
}

// Engine prices reservations from a fixed catalog. It is pure: the same
// params always produce the same quote.
type Engine struct {
	depositRate float64
	accessCodes map[string]bool
	packages    map[string]Package
	addons      map[string]Addon
}

func DefaultCatalog() []Package {
	return []Package{
		{Code: "tasting", Name: "Tasting Menu", PerGuestCents: 20000, MinParty: 4, FloorWithCode: 2},
		{Code: "family", Name: "Family Style", PerGuestCents: 9500, MinParty: 6},
		{Code: "counter", Name: "Chef's Counter", PerGuestCents: 15000, FixedParty: 2,
			Weekdays: []time.Weekday{time.Friday, time.Saturday}},
	}
}

func DefaultAddons() []Addon {
	return []Addon{
		{Code: "wine_pairing", Name: "Wine Pairing", Cents: 6500, PerGuest: true},
		{Code: "oyster_service", Name: "Oyster Service", Cents: 18000},
	}
}

func NewEngine(depositRate float64, accessCodes []string) *Engine {
	e := &Engine{
		depositRate: depositRate,
		accessCodes: make(map[string]bool),
		packages:    make(map[string]Package),
		addons:      make(map[string]Addon),
	}
	for _, code := range accessCodes {
		e.accessCodes[code] = true
	}
	for _, p := range DefaultCatalog() {
		e.packages[p.Code] = p
	}
	for _, a := range DefaultAddons() {
		e.addons[a.Code] = a
	}
	return e
}

// Quote validates the params against the package's rules and prices the stay.
// Deposit is rounded half away from zero; balance is whatever remains, so
// deposit + balance always equals the subtotal.
func (e *Engine) Quote(params QuoteParams) (*Quote, error) {
	pkg, ok := e.packages[params.PackageCode]
	if !ok {
		return nil, ErrUnknownPackage
	}

	if params.PartySize < 1 {
		return nil, ErrInvalidPartySize
	}
	if pkg.FixedParty > 0 && params.PartySize != pkg.FixedParty {
		return nil, ErrInvalidPartySize
	}
	if params.PartySize < e.minParty(pkg, params.AccessCode) {
		return nil, ErrInvalidPartySize
	}

	if len(pkg.Weekdays) > 0 && !params.Date.IsZero() {
		allowed := false
		for _, wd := range pkg.Weekdays {
			if params.Date.UTC().Weekday() == wd {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrPackageRuleViolation
		}
	}

	perGuest := pkg.PerGuestCents
	if params.PerGuestCents > 0 {
		perGuest = params.PerGuestCents
	}
	packageCents := perGuest * int64(params.PartySize)

	var addonCents int64
	for _, code := range params.Addons {
		addon, ok := e.addons[code]
		if !ok {
			return nil, ErrUnknownAddon
		}
		if addon.PerGuest {
			addonCents += addon.Cents * int64(params.PartySize)
		} else {
			addonCents += addon.Cents
		}
	}

	subtotal := packageCents + addonCents
	deposit := int64(math.Round(float64(subtotal) * e.depositRate))

	return &Quote{
		PackageCode:   pkg.Code,
		PartySize:     params.PartySize,
		Addons:        params.Addons,
		SubtotalCents: subtotal,
		AddonCents:    addonCents,
		DepositCents:  deposit,
		BalanceCents:  subtotal - deposit,
	}, nil
}

func (e *Engine) minParty(pkg Package, accessCode string) int {
	if pkg.FloorWithCode > 0 && accessCode != "" && e.accessCodes[accessCode] {
		return pkg.FloorWithCode
	}
	return pkg.MinParty
}
