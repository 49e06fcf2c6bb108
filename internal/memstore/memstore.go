// Package memstore provides in-memory implementations of the portfolio store
// contracts. It backs handler tests and local runs without Postgres; the
// per-user mutex gives the same single-writer guarantee the database store
// gets from row locking.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"zentrading/internal/models"
	"zentrading/internal/portfolio"
)

type holdingsRecord struct {
	balance   decimal.Decimal
	positions map[string]portfolio.Position
}

// Store is a mutex-guarded map store implementing portfolio.Store,
// InstrumentStore, PreferenceStore, and UserStore.
type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	emails      map[string]string
	profiles    map[string]models.Profile
	holdings    map[string]*holdingsRecord
	instruments map[string]models.Instrument
	prefs       map[string]map[string]models.Preference

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]models.User),
		emails:      make(map[string]string),
		profiles:    make(map[string]models.Profile),
		holdings:    make(map[string]*holdingsRecord),
		instruments: make(map[string]models.Instrument),
		prefs:       make(map[string]map[string]models.Preference),
		userLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

/* ---- UserStore ---- */

// CreateUser registers a user and its profile together. A user without a
// profile never exists.
func (s *Store) CreateUser(ctx context.Context, email, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[email]; ok {
		return models.User{}, portfolio.ErrUserExists
	}
	u := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	s.profiles[u.ID] = models.Profile{UserID: u.ID, UpdatedAt: u.CreatedAt}
	return u, nil
}

func (s *Store) Profile(ctx context.Context, userID string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, portfolio.ErrUserNotFound
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; !ok {
		return portfolio.ErrUserNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.profiles[p.UserID] = p
	return nil
}

/* ---- portfolio.Store ---- */

func (s *Store) CreateHoldings(ctx context.Context, userID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.holdings[userID]
	if !ok {
		rec = &holdingsRecord{positions: make(map[string]portfolio.Position)}
		s.holdings[userID] = rec
	}
	rec.balance = balance
	return nil
}

func (s *Store) Holdings(ctx context.Context, userID string) (*portfolio.Holdings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(userID)
}

// snapshot deep-copies the record so callers never alias stored state.
// Callers hold at least a read lock.
func (s *Store) snapshot(userID string) (*portfolio.Holdings, error) {
	rec, ok := s.holdings[userID]
	if !ok {
		return nil, portfolio.ErrHoldingsNotFound
	}
	positions := make([]portfolio.Position, 0, len(rec.positions))
	for _, p := range rec.positions {
		positions = append(positions, p)
	}
	return &portfolio.Holdings{
		UserID:  userID,
		Balance: rec.balance,
		Ledger:  portfolio.NewLedger(positions),
	}, nil
}

// Mutate serializes writers per user, runs fn against a snapshot, and swaps
// the committed state in only when fn succeeds.
func (s *Store) Mutate(ctx context.Context, userID string, fn func(*portfolio.Holdings) error) (*portfolio.Holdings, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	h, err := s.snapshot(userID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if err := fn(h); err != nil {
		return nil, err
	}

	positions := make(map[string]portfolio.Position, h.Ledger.Len())
	for _, p := range h.Ledger.List() {
		positions[p.Ticker] = p
	}
	s.mu.Lock()
	s.holdings[userID] = &holdingsRecord{balance: h.Balance, positions: positions}
	s.mu.Unlock()
	return h, nil
}

/* ---- InstrumentStore ---- */

func (s *Store) Instrument(ctx context.Context, ticker string) (models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instruments[ticker]
	if !ok {
		return models.Instrument{}, portfolio.ErrInstrumentNotFound
	}
	return inst, nil
}

func (s *Store) Instruments(ctx context.Context) ([]models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst)
	}
	return out, nil
}

func (s *Store) UpsertInstrument(ctx context.Context, inst models.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.LastUpdated = time.Now().UTC()
	s.instruments[inst.Ticker] = inst
	return nil
}

func (s *Store) UpdateQuote(ctx context.Context, ticker string, q models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[ticker]
	if !ok {
		return portfolio.ErrInstrumentNotFound
	}
	inst.CurrentPrice = q.CurrentPrice
	inst.PreviousClose = q.PreviousClose
	inst.MarketState = q.MarketState
	inst.LastUpdated = time.Now().UTC()
	s.instruments[ticker] = inst
	return nil
}

/* ---- PreferenceStore ---- */

func (s *Store) Preferences(ctx context.Context, userID, prefType string) ([]models.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Preference{}
	for _, p := range s.prefs[userID] {
		if p.Type == prefType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ExcludedTickers(ctx context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.prefs[userID]))
	for ticker := range s.prefs[userID] {
		out[ticker] = true
	}
	return out, nil
}

func (s *Store) SetPreference(ctx context.Context, userID, ticker, prefType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTicker, ok := s.prefs[userID]
	if !ok {
		byTicker = make(map[string]models.Preference)
		s.prefs[userID] = byTicker
	}
	_, existed := byTicker[ticker]
	byTicker[ticker] = models.Preference{
		UserID:    userID,
		Ticker:    ticker,
		Type:      prefType,
		CreatedAt: time.Now().UTC(),
	}
	return !existed, nil
}

func (s *Store) RemovePreference(ctx context.Context, userID, ticker, prefType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID][ticker]
	if !ok || p.Type != prefType {
		return portfolio.ErrPreferenceNotFound
	}
	delete(s.prefs[userID], ticker)
	return nil
}
