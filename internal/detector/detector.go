// Package detector evaluates matched instrument pairs against both venues'
// best-ask quotes and emits cross-venue arbitrage opportunities.
package detector

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// QuoteSource provides the best-bid/best-ask view for one instrument on one
// venue. The ok result is false when no fresh quote is available; a stale or
// missing quote must never be reported as zero.
type QuoteSource interface {
	Best(venue domain.Venue, instrument string) (domain.Quote, bool)
}

// Detector computes arbitrage opportunities over a fixed pair registry.
// Detection passes are stateless: every pass recomputes opportunities from
// current quotes and keeps no memory of prior passes.
type Detector struct {
	pairs  []domain.InstrumentPair
	quotes QuoteSource
	logger *slog.Logger
	now    func() time.Time
}

// New creates a detector over the given pair registry.
func New(pairs []domain.InstrumentPair, quotes QuoteSource, logger *slog.Logger) *Detector {
	return &Detector{
		pairs:  append([]domain.InstrumentPair(nil), pairs...),
		quotes: quotes,
		logger: logger.With(slog.String("component", "detector")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Used by tests.
func (d *Detector) SetClock(now func() time.Time) { d.now = now }

// Scan evaluates every pair and returns the opportunities found, sorted by
// profit rate descending; ties keep arrival order.
func (d *Detector) Scan() []domain.Opportunity {
	var opps []domain.Opportunity
	for _, pair := range d.pairs {
		opps = append(opps, d.evaluatePair(pair)...)
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitRate > opps[j].ProfitRate
	})
	return opps
}

// evaluatePair evaluates both strategies for one pair independently: a pair
// can yield zero, one, or two simultaneous opportunities. A missing quote on
// one side excludes that strategy only, not the whole pair.
func (d *Detector) evaluatePair(pair domain.InstrumentPair) []domain.Opportunity {
	var opps []domain.Opportunity

	// Buy YES on venue A, buy NO on venue B.
	if opp, ok := d.evaluate(pair, domain.StrategyYesANoB,
		domain.Leg{Venue: domain.VenueA, Instrument: pair.VenueAYes},
		domain.Leg{Venue: domain.VenueB, Instrument: pair.VenueBNo},
	); ok {
		opps = append(opps, opp)
	}

	// Buy YES on venue B, buy NO on venue A.
	if opp, ok := d.evaluate(pair, domain.StrategyYesBNoA,
		domain.Leg{Venue: domain.VenueB, Instrument: pair.VenueBYes},
		domain.Leg{Venue: domain.VenueA, Instrument: pair.VenueANo},
	); ok {
		opps = append(opps, opp)
	}

	return opps
}

// evaluate prices one strategy. An opportunity exists iff both buy-side best
// asks are fresh and their sum is strictly less than the 1.0 payout.
func (d *Detector) evaluate(pair domain.InstrumentPair, strat domain.ArbStrategy, leg1, leg2 domain.Leg) (domain.Opportunity, bool) {
	q1, ok := d.quotes.Best(leg1.Venue, leg1.Instrument)
	if !ok || q1.BestAsk <= 0 {
		return domain.Opportunity{}, false
	}
	q2, ok := d.quotes.Best(leg2.Venue, leg2.Instrument)
	if !ok || q2.BestAsk <= 0 {
		return domain.Opportunity{}, false
	}

	cost := q1.BestAsk + q2.BestAsk
	if cost >= 1.0 {
		return domain.Opportunity{}, false
	}

	leg1.Ask = q1.BestAsk
	leg2.Ask = q2.BestAsk
	profit := 1.0 - cost

	return domain.Opportunity{
		ID:         uuid.New().String(),
		PairID:     pair.ID,
		Label:      pair.Label,
		Strategy:   strat,
		Leg1:       leg1,
		Leg2:       leg2,
		Cost:       cost,
		Profit:     profit,
		ProfitRate: profit / cost * 100,
		DetectedAt: d.now(),
	}, true
}
