package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"zentrading/internal/models"
	"zentrading/internal/zodiac"
)

// neutralBaseline is the overall alignment reported for a portfolio with no
// valued positions. Fixed convention, not derived.
const neutralBaseline = 50

const maxDiversityBonus = 15

var hundred = decimal.NewFromInt(100)

// HoldingView is one position enriched with live price and alignment data for
// the portfolio summary.
type HoldingView struct {
	Ticker           string           `json:"ticker"`
	CompanyName      string           `json:"company_name"`
	Quantity         decimal.Decimal  `json:"quantity"`
	AvgPurchasePrice decimal.Decimal  `json:"purchase_price"`
	PurchasedAt      time.Time        `json:"purchase_date"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	CurrentValue     decimal.Decimal  `json:"current_value"`
	CostBasis        decimal.Decimal  `json:"cost_basis"`
	GainLoss         decimal.Decimal  `json:"gain_loss"`
	GainLossPercent  decimal.Decimal  `json:"gain_loss_percent"`
	AlignmentScore   int              `json:"alignment_score"`
	MatchType        zodiac.MatchTier `json:"match_type"`
	ZodiacSign       zodiac.Sign      `json:"zodiac_sign"`
	Element          zodiac.Element   `json:"element"`
}

// Summary is the full portfolio picture: valuation, gains, and the cosmic
// alignment metrics. MissingPrices lists tickers whose instrument had no
// usable price and were valued at zero.
type Summary struct {
	CashBalance           decimal.Decimal            `json:"cash_balance"`
	StocksValue           decimal.Decimal            `json:"stocks_value"`
	TotalPortfolioValue   decimal.Decimal            `json:"total_portfolio_value"`
	TotalCostBasis        decimal.Decimal            `json:"total_cost_basis"`
	TotalGainLoss         decimal.Decimal            `json:"total_gain_loss"`
	TotalGainLossPercent  decimal.Decimal            `json:"total_gain_loss_percent"`
	OverallAlignmentScore int                        `json:"overall_alignment_score"`
	CosmicVibeIndex       int                        `json:"cosmic_vibe_index"`
	ElementDistribution   map[zodiac.Element]float64 `json:"element_distribution"`
	AlignmentBreakdown    map[zodiac.MatchTier]int   `json:"alignment_breakdown"`
	MissingPrices         []string                   `json:"missing_prices,omitempty"`
	Holdings              []HoldingView              `json:"holdings"`
}

// Score computes the portfolio summary for a user. It is a pure function of
// its inputs and never mutates state. Positions whose instrument or price is
// unknown value at zero with a neutral tier; the summary still succeeds.
// Holdings keep the ledger's ticker-ascending order.
func Score(userSign zodiac.Sign, cash decimal.Decimal, positions []Position, instruments map[string]models.Instrument, matrix *zodiac.Matrix) Summary {
	s := Summary{
		CashBalance:          cash,
		StocksValue:          decimal.Zero,
		TotalCostBasis:       decimal.Zero,
		TotalGainLoss:        decimal.Zero,
		TotalGainLossPercent: decimal.Zero,
		ElementDistribution:  make(map[zodiac.Element]float64, len(zodiac.Elements)),
		AlignmentBreakdown: map[zodiac.MatchTier]int{
			zodiac.MatchSameSign: 0,
			zodiac.MatchPositive: 0,
			zodiac.MatchNeutral:  0,
			zodiac.MatchNegative: 0,
		},
		Holdings: make([]HoldingView, 0, len(positions)),
	}

	weightedSum := decimal.Zero
	elementValue := make(map[zodiac.Element]decimal.Decimal, len(zodiac.Elements))

	for _, p := range positions {
		hv := HoldingView{
			Ticker:           p.Ticker,
			Quantity:         p.Quantity,
			AvgPurchasePrice: p.AvgPurchasePrice,
			PurchasedAt:      p.PurchasedAt,
			CurrentPrice:     decimal.Zero,
			CurrentValue:     decimal.Zero,
			CostBasis:        p.CostBasis,
			MatchType:        zodiac.MatchNeutral,
		}

		inst, known := instruments[p.Ticker]
		if known {
			hv.CompanyName = inst.CompanyName
			hv.ZodiacSign = inst.ZodiacSign
			hv.Element = inst.ZodiacSign.Element()
			hv.MatchType = matrix.Lookup(userSign, inst.ZodiacSign)
		}
		hv.AlignmentScore = hv.MatchType.AlignmentScore()

		if known && inst.CurrentPrice.Valid {
			hv.CurrentPrice = inst.CurrentPrice.Decimal
			hv.CurrentValue = hv.CurrentPrice.Mul(p.Quantity)
		} else {
			s.MissingPrices = append(s.MissingPrices, p.Ticker)
		}

		hv.GainLoss = hv.CurrentValue.Sub(p.CostBasis)
		if p.CostBasis.Sign() != 0 {
			hv.GainLossPercent = hv.GainLoss.Div(p.CostBasis).Mul(hundred).Round(2)
		} else {
			hv.GainLossPercent = decimal.Zero
		}

		s.StocksValue = s.StocksValue.Add(hv.CurrentValue)
		s.TotalCostBasis = s.TotalCostBasis.Add(p.CostBasis)
		s.AlignmentBreakdown[hv.MatchType]++
		weightedSum = weightedSum.Add(hv.CurrentValue.Mul(decimal.NewFromInt(int64(hv.AlignmentScore))))
		if hv.Element != "" {
			elementValue[hv.Element] = elementValue[hv.Element].Add(hv.CurrentValue)
		}

		s.Holdings = append(s.Holdings, hv)
	}

	s.TotalPortfolioValue = s.CashBalance.Add(s.StocksValue)
	s.TotalGainLoss = s.StocksValue.Sub(s.TotalCostBasis)
	if s.TotalCostBasis.Sign() != 0 {
		s.TotalGainLossPercent = s.TotalGainLoss.Div(s.TotalCostBasis).Mul(hundred).Round(2)
	}

	diverseElements := 0
	for _, el := range zodiac.Elements {
		v := elementValue[el]
		if s.StocksValue.Sign() > 0 {
			pct, _ := v.Div(s.StocksValue).Mul(hundred).Round(1).Float64()
			s.ElementDistribution[el] = pct
			if v.Sign() > 0 {
				diverseElements++
			}
		} else {
			s.ElementDistribution[el] = 0
		}
	}

	if s.StocksValue.Sign() > 0 {
		overall := weightedSum.Div(s.StocksValue).Round(0).IntPart()
		s.OverallAlignmentScore = int(overall)
	} else {
		s.OverallAlignmentScore = neutralBaseline
	}

	bonus := 3 * diverseElements
	if bonus > maxDiversityBonus {
		bonus = maxDiversityBonus
	}
	vibe := s.OverallAlignmentScore + bonus
	if vibe > 100 {
		vibe = 100
	}
	s.CosmicVibeIndex = vibe

	return s
}
