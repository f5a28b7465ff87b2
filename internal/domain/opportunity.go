package domain

import "time"

// ArbStrategy tags which leg buys which outcome on which venue.
type ArbStrategy string

const (
	// StrategyYesANoB buys YES on venue A and NO on venue B.
	StrategyYesANoB ArbStrategy = "yes_a_no_b"
	// StrategyYesBNoA buys YES on venue B and NO on venue A.
	StrategyYesBNoA ArbStrategy = "yes_b_no_a"
)

// Opportunity is a detected cross-venue mispricing: the combined cost of the
// two hedged buy legs is strictly below the 1.0 settlement payout. It is
// recomputed on every detection pass and never persisted across passes.
type Opportunity struct {
	ID       string
	PairID   string
	Label    string
	Strategy ArbStrategy

	// Leg quotes captured at detection time.
	Leg1 Leg
	Leg2 Leg

	Cost       float64 // sum of the two buy-side asks
	Profit     float64 // 1.0 - Cost
	ProfitRate float64 // Profit / Cost * 100

	DetectedAt time.Time
}

// Leg describes one of the two order submissions that make up a hedged trade.
type Leg struct {
	Venue      Venue
	Instrument string
	Ask        float64
}

// Sizing converts a target notional into shares and expected profit at the
// opportunity's captured cost. Quotes are not re-derived after detection; the
// caller accepts basis risk if the market moves before submission.
type Sizing struct {
	Notional       float64
	Shares         float64
	ExpectedProfit float64
}

// SizeFor computes the sizing for a target notional.
func (o Opportunity) SizeFor(notional float64) Sizing {
	if o.Cost <= 0 {
		return Sizing{Notional: notional}
	}
	shares := notional / o.Cost
	return Sizing{
		Notional:       notional,
		Shares:         shares,
		ExpectedProfit: shares * o.Profit,
	}
}
