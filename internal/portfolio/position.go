package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Position is one stock holding inside a user's portfolio. AvgPurchasePrice is
// the weighted average across buys; it is not recomputed on sells, so after a
// partial sell at a price away from the average, CostBasis may drift from
// Quantity * AvgPurchasePrice. That drift is deliberate (see DESIGN.md).
type Position struct {
	Ticker           string          `db:"ticker" json:"ticker"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	CostBasis        decimal.Decimal `db:"cost_basis" json:"cost_basis"`
	AvgPurchasePrice decimal.Decimal `db:"avg_purchase_price" json:"avg_purchase_price"`
	PurchasedAt      time.Time       `db:"purchased_at" json:"purchased_at"`
}

// Ledger is a user's set of positions keyed by ticker. A position with
// quantity <= 0 never exists; it is removed on closeout.
type Ledger struct {
	positions map[string]Position
}

// NewLedger builds a ledger from existing positions.
func NewLedger(positions []Position) *Ledger {
	l := &Ledger{positions: make(map[string]Position, len(positions))}
	for _, p := range positions {
		l.positions[p.Ticker] = p
	}
	return l
}

// OpenOrAdd creates a position on first buy of a ticker or blends a buy into
// an existing one: cost bases and quantities add, the average price is
// recomputed, and the purchase timestamp reflects the most recent buy.
// Validation happens before any mutation.
func (l *Ledger) OpenOrAdd(ticker string, quantity, cost decimal.Decimal, now time.Time) (Position, error) {
	if quantity.Sign() <= 0 {
		return Position{}, ErrInvalidQuantity
	}
	if cost.Sign() < 0 {
		return Position{}, ErrInvalidCost
	}

	p, ok := l.positions[ticker]
	if !ok {
		p = Position{Ticker: ticker}
	}
	p.Quantity = p.Quantity.Add(quantity)
	p.CostBasis = p.CostBasis.Add(cost)
	p.AvgPurchasePrice = p.CostBasis.Div(p.Quantity)
	p.PurchasedAt = now

	l.positions[ticker] = p
	return p, nil
}

// Reduce removes quantity from a position and subtracts the caller-supplied
// proceeds from its cost basis. When the remaining quantity is <= 0 the
// position is deleted and closed=true is returned so the caller can clear any
// watch marker for the ticker. A reduce that would leave a positive quantity
// with a negative cost basis is rejected as corrupt; nothing is mutated on any
// error path.
func (l *Ledger) Reduce(ticker string, quantity, proceeds decimal.Decimal) (Position, bool, error) {
	p, ok := l.positions[ticker]
	if !ok {
		return Position{}, false, ErrPositionNotFound
	}
	if quantity.GreaterThan(p.Quantity) {
		return Position{}, false, ErrInsufficientShares
	}

	remaining := p.Quantity.Sub(quantity)
	basis := p.CostBasis.Sub(proceeds)
	if remaining.Sign() > 0 && basis.Sign() < 0 {
		return Position{}, false, ErrCorruptPosition
	}

	if remaining.Sign() <= 0 {
		delete(l.positions, ticker)
		p.Quantity = decimal.Zero
		p.CostBasis = basis
		return p, true, nil
	}

	p.Quantity = remaining
	p.CostBasis = basis
	l.positions[ticker] = p
	return p, false, nil
}

// Get returns the position for a ticker, if held.
func (l *Ledger) Get(ticker string) (Position, bool) {
	p, ok := l.positions[ticker]
	return p, ok
}

// Len reports the number of open positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// List returns all positions ordered by ticker ascending.
func (l *Ledger) List() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
