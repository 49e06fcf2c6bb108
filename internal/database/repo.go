package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"zentrading/internal/models"
	"zentrading/internal/portfolio"
	"zentrading/internal/zodiac"
)

// Repo is the Postgres-backed store. It implements the portfolio store
// contracts; buy/sell commits run in a single transaction with a FOR UPDATE
// lock on the user's holdings row, which serializes writers per user.
type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

/* ---- users and profiles ---- */

// CreateUser inserts the user and its profile in one transaction. A user row
// never exists without its profile row.
func (r *Repo) CreateUser(ctx context.Context, email, username string) (models.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	var u models.User
	q := `INSERT INTO users (id, email, username, created_at) VALUES (gen_random_uuid(), $1, $2, now()) RETURNING id, email, username, created_at`
	if err := tx.QueryRowxContext(ctx, q, email, username).StructScan(&u); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, portfolio.ErrUserExists
		}
		return models.User{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_profiles (user_id, updated_at) VALUES ($1, now())`, u.ID); err != nil {
		return models.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *Repo) Profile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	q := `SELECT user_id, date_of_birth, zodiac_sign, zodiac_symbol, zodiac_element, investing_style, starting_balance, onboarding_completed, updated_at FROM user_profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, portfolio.ErrUserNotFound
		}
		return models.Profile{}, err
	}
	return p, nil
}

func (r *Repo) SaveProfile(ctx context.Context, p models.Profile) error {
	q := `UPDATE user_profiles SET date_of_birth = $2, zodiac_sign = $3, zodiac_symbol = $4, zodiac_element = $5, investing_style = $6, starting_balance = $7, onboarding_completed = $8, updated_at = now() WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, q, p.UserID, p.DateOfBirth, p.ZodiacSign, p.ZodiacSymbol, p.ZodiacElement, p.InvestingStyle, p.StartingBalance, p.OnboardingCompleted)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return portfolio.ErrUserNotFound
	}
	return nil
}

/* ---- holdings ---- */

func (r *Repo) CreateHoldings(ctx context.Context, userID string, balance decimal.Decimal) error {
	q := `INSERT INTO user_holdings (user_id, balance, created_at, updated_at) VALUES ($1, $2::numeric, now(), now()) ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`
	_, err := r.db.ExecContext(ctx, q, userID, balance.String())
	return err
}

func (r *Repo) Holdings(ctx context.Context, userID string) (*portfolio.Holdings, error) {
	var balance decimal.Decimal
	if err := r.db.GetContext(ctx, &balance, `SELECT balance FROM user_holdings WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, portfolio.ErrHoldingsNotFound
		}
		return nil, err
	}
	positions, err := r.loadPositions(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	return &portfolio.Holdings{UserID: userID, Balance: balance, Ledger: portfolio.NewLedger(positions)}, nil
}

type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

func (r *Repo) loadPositions(ctx context.Context, q queryer, userID string) ([]portfolio.Position, error) {
	rows, err := q.QueryxContext(ctx, `SELECT ticker, quantity, cost_basis, avg_purchase_price, purchased_at FROM stock_positions WHERE user_id = $1 ORDER BY ticker ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []portfolio.Position{}
	for rows.Next() {
		var p portfolio.Position
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan position failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Mutate loads the user's holdings under a FOR UPDATE row lock, applies fn,
// and writes balance and the full position set back in the same transaction.
// Any error from fn rolls everything back; nothing partially applies.
func (r *Repo) Mutate(ctx context.Context, userID string, fn func(*portfolio.Holdings) error) (*portfolio.Holdings, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM user_holdings WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance); err != nil {
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, portfolio.ErrHoldingsNotFound
		}
		return nil, err
	}

	positions, err := r.loadPositions(ctx, tx, userID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	h := &portfolio.Holdings{UserID: userID, Balance: balance, Ledger: portfolio.NewLedger(positions)}
	if err := fn(h); err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE user_holdings SET balance = $2::numeric, updated_at = now() WHERE user_id = $1`, userID, h.Balance.String()); err != nil {
		tx.Rollback()
		return nil, err
	}
	// The position set per user is small; rewriting it keeps the commit
	// logic independent of which tickers fn touched.
	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_positions WHERE user_id = $1`, userID); err != nil {
		tx.Rollback()
		return nil, err
	}
	insert := `INSERT INTO stock_positions (user_id, ticker, quantity, cost_basis, avg_purchase_price, purchased_at) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)`
	for _, p := range h.Ledger.List() {
		if _, err := tx.ExecContext(ctx, insert, userID, p.Ticker, p.Quantity.String(), p.CostBasis.String(), p.AvgPurchasePrice.String(), p.PurchasedAt); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return h, nil
}

/* ---- instruments ---- */

func (r *Repo) Instrument(ctx context.Context, ticker string) (models.Instrument, error) {
	var inst models.Instrument
	q := `SELECT ticker, company_name, current_price, previous_close, market_state, zodiac_sign, description, last_updated FROM stocks WHERE ticker = $1`
	if err := r.db.GetContext(ctx, &inst, q, ticker); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Instrument{}, portfolio.ErrInstrumentNotFound
		}
		return models.Instrument{}, err
	}
	return inst, nil
}

func (r *Repo) Instruments(ctx context.Context) ([]models.Instrument, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT ticker, company_name, current_price, previous_close, market_state, zodiac_sign, description, last_updated FROM stocks ORDER BY ticker ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Instrument{}
	for rows.Next() {
		var inst models.Instrument
		if err := rows.StructScan(&inst); err != nil {
			r.log.Warnf("scan instrument failed: %v", err)
			continue
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (r *Repo) UpsertInstrument(ctx context.Context, inst models.Instrument) error {
	q := `INSERT INTO stocks (ticker, company_name, zodiac_sign, description, last_updated) VALUES ($1, $2, $3, $4, now()) ON CONFLICT (ticker) DO UPDATE SET company_name = EXCLUDED.company_name, zodiac_sign = EXCLUDED.zodiac_sign, description = EXCLUDED.description, last_updated = now()`
	_, err := r.db.ExecContext(ctx, q, inst.Ticker, inst.CompanyName, inst.ZodiacSign, inst.Description)
	return err
}

func (r *Repo) UpdateQuote(ctx context.Context, ticker string, quote models.Quote) error {
	q := `UPDATE stocks SET current_price = $2, previous_close = $3, market_state = $4, last_updated = now() WHERE ticker = $1`
	res, err := r.db.ExecContext(ctx, q, ticker, quote.CurrentPrice, quote.PreviousClose, quote.MarketState)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return portfolio.ErrInstrumentNotFound
	}
	return nil
}

/* ---- compatibility matrix ---- */

// ReplaceMatrix swaps the stored compatibility table for a new entry set in
// one transaction.
func (r *Repo) ReplaceMatrix(ctx context.Context, entries []zodiac.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zodiac_matching`); err != nil {
		return err
	}
	insert := `INSERT INTO zodiac_matching (user_sign, stock_sign, match_type, element) VALUES ($1, $2, $3, $4)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insert, e.UserSign, e.StockSign, e.Tier, e.Element); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MatrixEntries loads the stored compatibility table, typically once at boot.
func (r *Repo) MatrixEntries(ctx context.Context) ([]zodiac.Entry, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_sign, stock_sign, match_type, element FROM zodiac_matching`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []zodiac.Entry{}
	for rows.Next() {
		var e zodiac.Entry
		if err := rows.StructScan(&e); err != nil {
			r.log.Warnf("scan matching entry failed: %v", err)
			continue
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

/* ---- preferences ---- */

func (r *Repo) Preferences(ctx context.Context, userID, prefType string) ([]models.Preference, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, ticker, preference_type, created_at FROM stock_preferences WHERE user_id = $1 AND preference_type = $2 ORDER BY ticker ASC`, userID, prefType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Preference{}
	for rows.Next() {
		var p models.Preference
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan preference failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *Repo) ExcludedTickers(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT ticker FROM stock_preferences WHERE user_id = $1 AND preference_type IN ($2, $3)`, userID, models.PrefWatchlist, models.PrefDislike)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]bool{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			r.log.Warnf("scan excluded ticker failed: %v", err)
			continue
		}
		res[t] = true
	}
	return res, rows.Err()
}

func (r *Repo) SetPreference(ctx context.Context, userID, ticker, prefType string) (bool, error) {
	var created bool
	q := `INSERT INTO stock_preferences (user_id, ticker, preference_type, created_at) VALUES ($1, $2, $3, now()) ON CONFLICT (user_id, ticker) DO UPDATE SET preference_type = EXCLUDED.preference_type RETURNING (xmax = 0)`
	if err := r.db.QueryRowContext(ctx, q, userID, ticker, prefType).Scan(&created); err != nil {
		return false, err
	}
	return created, nil
}

func (r *Repo) RemovePreference(ctx context.Context, userID, ticker, prefType string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stock_preferences WHERE user_id = $1 AND ticker = $2 AND preference_type = $3`, userID, ticker, prefType)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return portfolio.ErrPreferenceNotFound
	}
	return nil
}
