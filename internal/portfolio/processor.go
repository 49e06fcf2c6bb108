package portfolio

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the direction of an order.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Order is a validated buy or sell request. TotalValue is the caller-supplied
// total price of the order; the processor does not re-price it.
type Order struct {
	Ticker     string
	Quantity   decimal.Decimal
	TotalValue decimal.Decimal
	Action     Action
}

// ParseOrder validates raw request fields into an Order. Checks run in a fixed
// order and the first failure wins: ticker presence, numeric parseability,
// quantity positivity, total non-negativity, action validity.
func ParseOrder(ticker, quantity, totalValue, action string) (Order, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return Order{}, ErrInvalidTicker
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return Order{}, ErrInvalidAmount
	}
	total, err := decimal.NewFromString(strings.TrimSpace(totalValue))
	if err != nil {
		return Order{}, ErrInvalidAmount
	}
	ord := Order{
		Ticker:     t,
		Quantity:   qty,
		TotalValue: total,
		Action:     Action(strings.ToLower(strings.TrimSpace(action))),
	}
	if err := ord.Validate(); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// Validate re-runs the value checks on an already-parsed order, in the same
// order ParseOrder applies them.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Ticker) == "" {
		return ErrInvalidTicker
	}
	if o.Quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	if o.TotalValue.Sign() < 0 {
		return ErrInvalidAmount
	}
	if o.Action != ActionBuy && o.Action != ActionSell {
		return ErrInvalidAction
	}
	return nil
}

// Holdings is one user's cash balance plus position set. It is the unit of
// atomic mutation: a store loads it, the processor mutates it, and the store
// commits balance and positions together or not at all.
type Holdings struct {
	UserID  string
	Balance decimal.Decimal
	Ledger  *Ledger
}

// Apply runs a validated order against the holdings. It returns whether a sell
// closed the position out entirely. Every error path leaves the holdings
// untouched; ledger operations validate before mutating and the balance update
// cannot fail once they succeed.
func (h *Holdings) Apply(ord Order, now time.Time) (closedOut bool, err error) {
	if err := ord.Validate(); err != nil {
		return false, err
	}

	switch ord.Action {
	case ActionBuy:
		if h.Balance.LessThan(ord.TotalValue) {
			return false, ErrInsufficientBalance
		}
		if _, err := h.Ledger.OpenOrAdd(ord.Ticker, ord.Quantity, ord.TotalValue, now); err != nil {
			return false, err
		}
		h.Balance = h.Balance.Sub(ord.TotalValue)
		return false, nil

	case ActionSell:
		_, closed, err := h.Ledger.Reduce(ord.Ticker, ord.Quantity, ord.TotalValue)
		if err != nil {
			return false, err
		}
		h.Balance = h.Balance.Add(ord.TotalValue)
		return closed, nil
	}

	return false, ErrInvalidAction
}
