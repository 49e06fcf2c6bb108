package portfolio

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"zentrading/internal/models"
)

// Store lookup errors shared by all store implementations.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrPreferenceNotFound = errors.New("preference not found")
)

// Store persists holdings. Mutate is the single-writer path: the
// implementation must serialize concurrent mutations for the same user and
// commit balance and positions atomically, discarding everything when fn
// returns an error.
type Store interface {
	Holdings(ctx context.Context, userID string) (*Holdings, error)
	CreateHoldings(ctx context.Context, userID string, balance decimal.Decimal) error
	Mutate(ctx context.Context, userID string, fn func(*Holdings) error) (*Holdings, error)
}

// InstrumentStore holds process-wide stock reference data. UpdateQuote is
// called by the price refresher on its own schedule; readers tolerate prices
// stale by up to one refresh interval.
type InstrumentStore interface {
	Instrument(ctx context.Context, ticker string) (models.Instrument, error)
	Instruments(ctx context.Context) ([]models.Instrument, error)
	UpsertInstrument(ctx context.Context, inst models.Instrument) error
	UpdateQuote(ctx context.Context, ticker string, q models.Quote) error
}

// PreferenceStore holds per-user (ticker, preference) markers.
type PreferenceStore interface {
	Preferences(ctx context.Context, userID, prefType string) ([]models.Preference, error)
	// ExcludedTickers returns tickers hidden from discovery feeds: everything
	// on the user's watchlist or dislike list.
	ExcludedTickers(ctx context.Context, userID string) (map[string]bool, error)
	SetPreference(ctx context.Context, userID, ticker, prefType string) (created bool, err error)
	RemovePreference(ctx context.Context, userID, ticker, prefType string) error
}

// UserStore manages accounts and profiles. CreateUser must create the user's
// profile in the same operation; a user without a profile never exists.
type UserStore interface {
	CreateUser(ctx context.Context, email, username string) (models.User, error)
	Profile(ctx context.Context, userID string) (models.Profile, error)
	SaveProfile(ctx context.Context, p models.Profile) error
}
