// Package book reconstructs best-bid/best-ask state per instrument from a mix
// of full snapshots and incremental deltas delivered by the feed layer.
package book

import (
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// defaultStalenessHorizon is the maximum quote age before Best reports the
// instrument as unavailable.
const defaultStalenessHorizon = 10 * time.Second

// ladder is the per-instrument book state. Bids are kept sorted descending,
// asks ascending, so the best price is always index 0.
type ladder struct {
	mu        sync.RWMutex
	bids      []domain.PriceLevel
	asks      []domain.PriceLevel
	updatedAt time.Time
}

// Store holds one ladder per (venue, instrument). Updates for different
// instruments never contend with each other; a single instrument's ladder is
// updated atomically with respect to concurrent readers.
type Store struct {
	horizon time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	ladders map[key]*ladder
}

type key struct {
	venue      domain.Venue
	instrument string
}

// Option configures a Store.
type Option func(*Store)

// WithStalenessHorizon overrides the default quote staleness horizon.
func WithStalenessHorizon(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		horizon: defaultStalenessHorizon,
		now:     func() time.Time { return time.Now().UTC() },
		ladders: make(map[key]*ladder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ladderFor(venue domain.Venue, instrument string) *ladder {
	k := key{venue: venue, instrument: instrument}

	s.mu.RLock()
	l, ok := s.ladders[k]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.ladders[k]; ok {
		return l
	}
	l = &ladder{}
	s.ladders[k] = l
	return l
}

// ApplySnapshot replaces both sides of the instrument's book wholesale.
// Applying the same snapshot twice yields the same state as applying it once.
func (s *Store) ApplySnapshot(snap domain.BookSnapshot) {
	l := s.ladderFor(snap.Venue, snap.Instrument)

	bids := append([]domain.PriceLevel(nil), snap.Bids...)
	asks := append([]domain.PriceLevel(nil), snap.Asks...)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	l.mu.Lock()
	l.bids = bids
	l.asks = asks
	l.updatedAt = snap.AsOf
	l.mu.Unlock()
}

// ApplyDelta upserts a single price level; size zero removes the level at
// exactly that price and no other. Replaying a delta is harmless.
func (s *Store) ApplyDelta(d domain.BookDelta) {
	l := s.ladderFor(d.Venue, d.Instrument)

	l.mu.Lock()
	defer l.mu.Unlock()

	switch d.Side {
	case domain.SideBid:
		l.bids = upsert(l.bids, d.Price, d.Size, func(a, b float64) bool { return a > b })
	case domain.SideAsk:
		l.asks = upsert(l.asks, d.Price, d.Size, func(a, b float64) bool { return a < b })
	default:
		return
	}
	l.updatedAt = d.AsOf
}

// upsert inserts, replaces, or removes (size==0) the level at price, keeping
// the slice ordered by before (descending for bids, ascending for asks).
func upsert(levels []domain.PriceLevel, price, size float64, before func(a, b float64) bool) []domain.PriceLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].Price, price)
	})

	found := idx < len(levels) && levels[idx].Price == price
	switch {
	case size == 0 && found:
		return append(levels[:idx], levels[idx+1:]...)
	case size == 0:
		return levels
	case found:
		levels[idx].Size = size
		return levels
	default:
		levels = append(levels, domain.PriceLevel{})
		copy(levels[idx+1:], levels[idx:])
		levels[idx] = domain.PriceLevel{Price: price, Size: size}
		return levels
	}
}

// Best returns the current best-bid/best-ask quote for the instrument.
// ok is false when no update was ever received or the most recent update is
// older than the staleness horizon; stale books are never reported as zero.
func (s *Store) Best(venue domain.Venue, instrument string) (domain.Quote, bool) {
	k := key{venue: venue, instrument: instrument}

	s.mu.RLock()
	l, exists := s.ladders[k]
	s.mu.RUnlock()
	if !exists {
		return domain.Quote{}, false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.updatedAt.IsZero() || s.now().Sub(l.updatedAt) > s.horizon {
		return domain.Quote{}, false
	}

	q := domain.Quote{
		Venue:      venue,
		Instrument: instrument,
		AsOf:       l.updatedAt,
	}
	if len(l.bids) > 0 {
		q.BestBid = l.bids[0].Price
	}
	if len(l.asks) > 0 {
		q.BestAsk = l.asks[0].Price
	}
	return q, true
}

// Depth returns copies of both sides of the ladder, primarily for reporting.
func (s *Store) Depth(venue domain.Venue, instrument string) (bids, asks []domain.PriceLevel) {
	k := key{venue: venue, instrument: instrument}

	s.mu.RLock()
	l, exists := s.ladders[k]
	s.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.PriceLevel(nil), l.bids...),
		append([]domain.PriceLevel(nil), l.asks...)
}
