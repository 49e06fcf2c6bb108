package models

import (
	"time"

	"github.com/shopspring/decimal"

	"zentrading/internal/zodiac"
)

// User is an account record. Creating a user always creates exactly one
// associated Profile; stores enforce that invariant at creation time.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Profile holds a user's zodiac and onboarding data.
type Profile struct {
	UserID              string              `db:"user_id" json:"user_id"`
	DateOfBirth         string              `db:"date_of_birth" json:"date_of_birth"`
	ZodiacSign          zodiac.Sign         `db:"zodiac_sign" json:"zodiac_sign"`
	ZodiacSymbol        string              `db:"zodiac_symbol" json:"zodiac_symbol"`
	ZodiacElement       zodiac.Element      `db:"zodiac_element" json:"zodiac_element"`
	InvestingStyle      string              `db:"investing_style" json:"investing_style"`
	StartingBalance     decimal.NullDecimal `db:"starting_balance" json:"starting_balance"`
	OnboardingCompleted bool                `db:"onboarding_completed" json:"onboarding_completed"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// InvestingStyles are the accepted onboarding style values.
var InvestingStyles = []string{"casual", "balanced", "profit-seeking", "playful"}

// ValidInvestingStyle reports whether s is an accepted style.
func ValidInvestingStyle(s string) bool {
	for _, v := range InvestingStyles {
		if v == s {
			return true
		}
	}
	return false
}

// Onboarding bounds for the simulated starting balance.
var (
	MinStartingBalance = decimal.NewFromInt(10000)
	MaxStartingBalance = decimal.NewFromInt(1000000)
)

// Instrument is process-wide reference data for one tradable stock. Prices are
// unknown until the first successful refresh.
type Instrument struct {
	Ticker        string              `db:"ticker" json:"ticker"`
	CompanyName   string              `db:"company_name" json:"company_name"`
	CurrentPrice  decimal.NullDecimal `db:"current_price" json:"current_price"`
	PreviousClose decimal.NullDecimal `db:"previous_close" json:"previous_close"`
	MarketState   string              `db:"market_state" json:"market_state"`
	ZodiacSign    zodiac.Sign         `db:"zodiac_sign" json:"zodiac_sign"`
	Description   string              `db:"description" json:"description"`
	LastUpdated   time.Time           `db:"last_updated" json:"last_updated"`
}

// Quote is a point-in-time price snapshot from the market data feed. Fields
// may be unknown; consumers must degrade, never crash.
type Quote struct {
	Ticker        string              `json:"ticker"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	MarketState   string              `json:"market_state"`
	AsOf          time.Time           `json:"as_of"`
}

// MarketStateRegular is the feed's value for regular trading hours.
const MarketStateRegular = "REGULAR"

// Preference marks a ticker on a user's watchlist or dislike list. A user has
// at most one preference per ticker.
type Preference struct {
	UserID    string    `db:"user_id" json:"-"`
	Ticker    string    `db:"ticker" json:"ticker"`
	Type      string    `db:"preference_type" json:"preference_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Preference types.
const (
	PrefWatchlist = "watchlist"
	PrefDislike   = "dislike"
)
