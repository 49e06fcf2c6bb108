package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zentrading/internal/models"
	"zentrading/internal/zodiac"
)

func instrument(ticker string, sign zodiac.Sign, price string) models.Instrument {
	return models.Instrument{
		Ticker:       ticker,
		CompanyName:  ticker + " Inc.",
		ZodiacSign:   sign,
		CurrentPrice: decimal.NullDecimal{Decimal: d(price), Valid: true},
	}
}

func TestScoreEmptyPortfolio(t *testing.T) {
	s := Score(zodiac.Aries, d("10000"), nil, nil, zodiac.DefaultMatrix())

	assert.True(t, s.TotalPortfolioValue.Equal(d("10000")))
	assert.True(t, s.StocksValue.IsZero())
	assert.Equal(t, 50, s.OverallAlignmentScore)
	assert.Equal(t, 50, s.CosmicVibeIndex)
	for _, el := range zodiac.Elements {
		pct, ok := s.ElementDistribution[el]
		require.True(t, ok, "every element is always reported")
		assert.Zero(t, pct)
	}
	assert.Empty(t, s.Holdings)
}

func TestScoreSinglePositiveHolding(t *testing.T) {
	positions := []Position{{
		Ticker:           "LEO1",
		Quantity:         d("10"),
		CostBasis:        d("800"),
		AvgPurchasePrice: d("80"),
	}}
	instruments := map[string]models.Instrument{
		"LEO1": instrument("LEO1", zodiac.Leo, "100"),
	}

	s := Score(zodiac.Aries, d("500"), positions, instruments, zodiac.DefaultMatrix())

	require.Len(t, s.Holdings, 1)
	hv := s.Holdings[0]
	assert.Equal(t, zodiac.MatchPositive, hv.MatchType)
	assert.Equal(t, 85, hv.AlignmentScore)
	assert.True(t, hv.CurrentValue.Equal(d("1000")))
	assert.True(t, hv.GainLoss.Equal(d("200")))
	assert.True(t, hv.GainLossPercent.Equal(d("25")))
	assert.Equal(t, zodiac.Fire, hv.Element)

	assert.True(t, s.StocksValue.Equal(d("1000")))
	assert.True(t, s.TotalPortfolioValue.Equal(d("1500")))
	assert.True(t, s.TotalGainLoss.Equal(d("200")))
	assert.True(t, s.TotalGainLossPercent.Equal(d("25")))
	assert.Equal(t, 85, s.OverallAlignmentScore)
	assert.Equal(t, 88, s.CosmicVibeIndex, "85 plus a 3-point bonus for one element")
	assert.InDelta(t, 100.0, s.ElementDistribution[zodiac.Fire], 0.01)
	assert.Equal(t, 1, s.AlignmentBreakdown[zodiac.MatchPositive])
	assert.Equal(t, 0, s.AlignmentBreakdown[zodiac.MatchSameSign])
}

func TestScoreValueWeightedAlignment(t *testing.T) {
	// 3000 at same-sign (100) and 1000 at negative (40):
	// (3000*100 + 1000*40) / 4000 = 85.
	positions := []Position{
		{Ticker: "SAME", Quantity: d("30"), CostBasis: d("3000")},
		{Ticker: "CLSH", Quantity: d("10"), CostBasis: d("1000")},
	}
	instruments := map[string]models.Instrument{
		"SAME": instrument("SAME", zodiac.Aries, "100"),
		"CLSH": instrument("CLSH", zodiac.Cancer, "100"),
	}

	s := Score(zodiac.Aries, decimal.Zero, positions, instruments, zodiac.DefaultMatrix())

	assert.Equal(t, 85, s.OverallAlignmentScore)
	assert.Equal(t, 1, s.AlignmentBreakdown[zodiac.MatchSameSign])
	assert.Equal(t, 1, s.AlignmentBreakdown[zodiac.MatchNegative])
	assert.InDelta(t, 75.0, s.ElementDistribution[zodiac.Fire], 0.01)
	assert.InDelta(t, 25.0, s.ElementDistribution[zodiac.Water], 0.01)

	total := 0.0
	for _, pct := range s.ElementDistribution {
		total += pct
	}
	assert.InDelta(t, 100.0, total, 0.2, "distribution percentages sum to 100")
}

func TestScoreVibeIndexCapsAt100(t *testing.T) {
	// All same-sign holdings score 100; any diversity bonus must not push the
	// vibe index past the cap.
	positions := []Position{
		{Ticker: "A1", Quantity: d("1"), CostBasis: d("100")},
	}
	instruments := map[string]models.Instrument{
		"A1": instrument("A1", zodiac.Libra, "100"),
	}

	s := Score(zodiac.Libra, decimal.Zero, positions, instruments, zodiac.DefaultMatrix())
	assert.Equal(t, 100, s.OverallAlignmentScore)
	assert.Equal(t, 100, s.CosmicVibeIndex)
}

func TestScoreDiversityBonusAcrossAllElements(t *testing.T) {
	positions := []Position{
		{Ticker: "F", Quantity: d("1"), CostBasis: d("10")},
		{Ticker: "E", Quantity: d("1"), CostBasis: d("10")},
		{Ticker: "A", Quantity: d("1"), CostBasis: d("10")},
		{Ticker: "W", Quantity: d("1"), CostBasis: d("10")},
	}
	instruments := map[string]models.Instrument{
		"F": instrument("F", zodiac.Sagittarius, "10"),
		"E": instrument("E", zodiac.Taurus, "10"),
		"A": instrument("A", zodiac.Gemini, "10"),
		"W": instrument("W", zodiac.Pisces, "10"),
	}

	// Aquarius vs Sagittarius/Gemini positive (85), Taurus negative (40),
	// Pisces neutral (65): (85+40+85+65)/4 = 68.75 rounds to 69.
	s := Score(zodiac.Aquarius, decimal.Zero, positions, instruments, zodiac.DefaultMatrix())
	assert.Equal(t, 69, s.OverallAlignmentScore)
	// Four elements held earns the maximum 12-point bonus.
	assert.Equal(t, 81, s.CosmicVibeIndex)
}

func TestScoreUnknownPriceValuesAtZero(t *testing.T) {
	positions := []Position{
		{Ticker: "KNWN", Quantity: d("10"), CostBasis: d("500")},
		{Ticker: "MYST", Quantity: d("5"), CostBasis: d("300")},
	}
	instruments := map[string]models.Instrument{
		"KNWN": instrument("KNWN", zodiac.Aries, "100"),
		// MYST has no instrument record at all.
	}

	s := Score(zodiac.Aries, decimal.Zero, positions, instruments, zodiac.DefaultMatrix())

	require.Len(t, s.Holdings, 2)
	myst := s.Holdings[1]
	assert.Equal(t, "MYST", myst.Ticker)
	assert.True(t, myst.CurrentValue.IsZero())
	assert.Equal(t, zodiac.MatchNeutral, myst.MatchType)
	assert.Equal(t, []string{"MYST"}, s.MissingPrices)

	// The zero-valued position contributes nothing to the weighted mean.
	assert.Equal(t, 100, s.OverallAlignmentScore)
	assert.True(t, s.TotalCostBasis.Equal(d("800")))
}
