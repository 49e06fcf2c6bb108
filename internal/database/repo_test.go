package database

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"zentrading/internal/portfolio"
	"zentrading/internal/zodiac"
)

func setupDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	b, err := ioutil.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		t.Logf("exec migration: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, r *Repo) string {
	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	u, err := r.CreateUser(context.Background(), email, "it")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestCreateUserAlsoCreatesProfile(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	userID := createTestUser(t, r)
	p, err := r.Profile(ctx, userID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.UserID != userID {
		t.Fatalf("profile user mismatch: %s != %s", p.UserID, userID)
	}
	if p.OnboardingCompleted {
		t.Fatalf("new profile must not be onboarded")
	}
}

func TestMutateCommitsBalanceAndPositionsTogether(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	userID := createTestUser(t, r)
	if err := r.CreateHoldings(ctx, userID, decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("create holdings: %v", err)
	}

	ord, err := portfolio.ParseOrder("AAPL", "10", "1600", "buy")
	if err != nil {
		t.Fatalf("parse order: %v", err)
	}
	h, err := r.Mutate(ctx, userID, func(h *portfolio.Holdings) error {
		_, err := h.Apply(ord, time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if !h.Balance.Equal(decimal.NewFromInt(8400)) {
		t.Fatalf("balance after buy: %s", h.Balance)
	}

	got, err := r.Holdings(ctx, userID)
	if err != nil {
		t.Fatalf("reload holdings: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(8400)) {
		t.Fatalf("persisted balance: %s", got.Balance)
	}
	p, ok := got.Ledger.Get("AAPL")
	if !ok {
		t.Fatalf("position not persisted")
	}
	if !p.Quantity.Equal(decimal.NewFromInt(10)) || !p.CostBasis.Equal(decimal.NewFromInt(1600)) {
		t.Fatalf("persisted position: qty=%s basis=%s", p.Quantity, p.CostBasis)
	}
}

func TestMutateRollsBackOnError(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	userID := createTestUser(t, r)
	if err := r.CreateHoldings(ctx, userID, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("create holdings: %v", err)
	}

	boom := errors.New("boom")
	_, err := r.Mutate(ctx, userID, func(h *portfolio.Holdings) error {
		h.Balance = decimal.Zero
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, err := r.Holdings(ctx, userID)
	if err != nil {
		t.Fatalf("reload holdings: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance mutated despite rollback: %s", got.Balance)
	}
}

func TestMutateSellToZeroRemovesPositionRow(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	userID := createTestUser(t, r)
	if err := r.CreateHoldings(ctx, userID, decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("create holdings: %v", err)
	}

	buy, _ := portfolio.ParseOrder("TSLA", "5", "1000", "buy")
	if _, err := r.Mutate(ctx, userID, func(h *portfolio.Holdings) error {
		_, err := h.Apply(buy, time.Now().UTC())
		return err
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	sell, _ := portfolio.ParseOrder("TSLA", "5", "1200", "sell")
	if _, err := r.Mutate(ctx, userID, func(h *portfolio.Holdings) error {
		_, err := h.Apply(sell, time.Now().UTC())
		return err
	}); err != nil {
		t.Fatalf("sell: %v", err)
	}

	var n int
	if err := db.Get(&n, `SELECT count(*) FROM stock_positions WHERE user_id = $1`, userID); err != nil {
		t.Fatalf("count positions: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no position rows after closeout, got %d", n)
	}
}

func TestSetPreferenceReportsCreation(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	userID := createTestUser(t, r)
	ticker := "AAPL"

	created, err := r.SetPreference(ctx, userID, ticker, "watchlist")
	if err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if !created {
		t.Fatalf("expected created true on first insert")
	}

	created, err = r.SetPreference(ctx, userID, ticker, "dislike")
	if err != nil {
		t.Fatalf("set preference (replace): %v", err)
	}
	if created {
		t.Fatalf("expected created false when replacing an existing marker")
	}

	excluded, err := r.ExcludedTickers(ctx, userID)
	if err != nil {
		t.Fatalf("excluded tickers: %v", err)
	}
	if !excluded[ticker] {
		t.Fatalf("ticker missing from exclusions")
	}

	if err := r.RemovePreference(ctx, userID, ticker, "dislike"); err != nil {
		t.Fatalf("remove preference: %v", err)
	}
	if err := r.RemovePreference(ctx, userID, ticker, "dislike"); !errors.Is(err, portfolio.ErrPreferenceNotFound) {
		t.Fatalf("expected ErrPreferenceNotFound, got %v", err)
	}
}

func TestReplaceAndLoadMatrix(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	r := New(db, logrus.New())
	ctx := context.Background()

	entries := zodiac.DefaultEntries()
	if err := r.ReplaceMatrix(ctx, entries); err != nil {
		t.Fatalf("replace matrix: %v", err)
	}
	got, err := r.MatrixEntries(ctx)
	if err != nil {
		t.Fatalf("load matrix: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	m := zodiac.NewMatrix(got)
	if tier := m.Lookup(zodiac.Aries, zodiac.Leo); tier != zodiac.MatchPositive {
		t.Fatalf("Aries/Leo should be positive, got %s", tier)
	}
}
