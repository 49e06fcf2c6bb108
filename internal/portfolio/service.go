package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"zentrading/internal/models"
	"zentrading/internal/zodiac"
)

// ErrNoZodiacSign is returned when an operation needs the user's zodiac sign
// but onboarding has not set one yet.
var ErrNoZodiacSign = errors.New("zodiac sign not set")

// Service ties the stores, the compatibility matrix, and the transaction and
// scoring logic together behind the surface the HTTP layer calls.
type Service struct {
	store       Store
	instruments InstrumentStore
	prefs       PreferenceStore
	users       UserStore
	matrix      *zodiac.Matrix
	log         *logrus.Logger
	now         func() time.Time
}

// NewService wires a service. The clock is overridable for tests.
func NewService(store Store, instruments InstrumentStore, prefs PreferenceStore, users UserStore, matrix *zodiac.Matrix, log *logrus.Logger) *Service {
	return &Service{
		store:       store,
		instruments: instruments,
		prefs:       prefs,
		users:       users,
		matrix:      matrix,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock; intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ProcessTransaction applies a validated order to the user's holdings. The
// store commits balance and positions atomically; on any error nothing is
// applied. A sell that closes a position out clears the user's watchlist
// marker for the ticker so it can reappear in discovery feeds.
func (s *Service) ProcessTransaction(ctx context.Context, userID string, ord Order) (*Holdings, error) {
	closedOut := false
	h, err := s.store.Mutate(ctx, userID, func(h *Holdings) error {
		closed, err := h.Apply(ord, s.now())
		if err != nil {
			return err
		}
		closedOut = closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closedOut {
		if err := s.prefs.RemovePreference(ctx, userID, ord.Ticker, models.PrefWatchlist); err != nil && !errors.Is(err, ErrPreferenceNotFound) {
			// The trade is already committed; a stale watch marker is not
			// worth failing the request over.
			s.log.Warnf("clear watchlist marker %s/%s: %v", userID, ord.Ticker, err)
		}
	}
	return h, nil
}

// Holdings returns the user's current holdings snapshot.
func (s *Service) Holdings(ctx context.Context, userID string) (*Holdings, error) {
	return s.store.Holdings(ctx, userID)
}

// Summary computes the alignment-scored portfolio summary. Instruments that
// cannot be loaded degrade to zero value and neutral compatibility instead of
// failing the whole summary.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	profile, err := s.users.Profile(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("load profile: %w", err)
	}
	if !profile.ZodiacSign.Valid() {
		return Summary{}, ErrNoZodiacSign
	}

	h, err := s.store.Holdings(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	positions := h.Ledger.List()
	instruments := make(map[string]models.Instrument, len(positions))
	for _, p := range positions {
		inst, err := s.instruments.Instrument(ctx, p.Ticker)
		if err != nil {
			s.log.Warnf("instrument %s unavailable, valuing at zero: %v", p.Ticker, err)
			continue
		}
		instruments[p.Ticker] = inst
	}

	return Score(profile.ZodiacSign, h.Balance, positions, instruments, s.matrix), nil
}

// MatchedStock is one discovery-feed entry: an instrument annotated with its
// compatibility against the requesting user's sign.
type MatchedStock struct {
	models.Instrument
	MatchType          zodiac.MatchTier `json:"match_type"`
	IsSameSign         bool             `json:"is_same_sign"`
	Element            zodiac.Element   `json:"element"`
	CompatibilityScore int              `json:"compatibility_score"`
}

// Discovery is the zodiac-matched stock feed for one user.
type Discovery struct {
	UserSign      zodiac.Sign    `json:"user_sign"`
	UserElement   zodiac.Element `json:"user_element"`
	TotalMatches  int            `json:"total_matches"`
	MatchedStocks []MatchedStock `json:"matched_stocks"`
}

// Discover lists instruments compatible with the user's sign, best matches
// first, then ticker ascending. Tickers the user has watchlisted or disliked
// are excluded. matchType optionally narrows to one stored tier; limit <= 0
// means no limit.
func (s *Service) Discover(ctx context.Context, userID, matchType string, limit int) (Discovery, error) {
	profile, err := s.users.Profile(ctx, userID)
	if err != nil {
		return Discovery{}, fmt.Errorf("load profile: %w", err)
	}
	if !profile.ZodiacSign.Valid() {
		return Discovery{}, ErrNoZodiacSign
	}

	excluded, err := s.prefs.ExcludedTickers(ctx, userID)
	if err != nil {
		return Discovery{}, fmt.Errorf("load preferences: %w", err)
	}

	all, err := s.instruments.Instruments(ctx)
	if err != nil {
		return Discovery{}, fmt.Errorf("load instruments: %w", err)
	}

	d := Discovery{
		UserSign:      profile.ZodiacSign,
		UserElement:   profile.ZodiacSign.Element(),
		MatchedStocks: []MatchedStock{},
	}
	for _, inst := range all {
		if excluded[inst.Ticker] || !inst.ZodiacSign.Valid() {
			continue
		}
		tier := s.matrix.Lookup(profile.ZodiacSign, inst.ZodiacSign)
		if matchType != "" && string(tier) != matchType {
			continue
		}
		d.MatchedStocks = append(d.MatchedStocks, MatchedStock{
			Instrument:         inst,
			MatchType:          tier,
			IsSameSign:         tier == zodiac.MatchSameSign,
			Element:            inst.ZodiacSign.Element(),
			CompatibilityScore: tier.CompatibilityRank(),
		})
	}

	sort.Slice(d.MatchedStocks, func(i, j int) bool {
		a, b := d.MatchedStocks[i], d.MatchedStocks[j]
		if a.CompatibilityScore != b.CompatibilityScore {
			return a.CompatibilityScore > b.CompatibilityScore
		}
		return a.Ticker < b.Ticker
	})

	if limit > 0 && limit < len(d.MatchedStocks) {
		d.MatchedStocks = d.MatchedStocks[:limit]
	}
	d.TotalMatches = len(d.MatchedStocks)
	return d, nil
}

// Compatibility resolves the match tier for a (user sign, stock sign) pair.
func (s *Service) Compatibility(userSign, stockSign zodiac.Sign) zodiac.MatchTier {
	return s.matrix.Lookup(userSign, stockSign)
}
