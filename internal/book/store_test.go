package book

import (
	"testing"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestApplySnapshotSortsBothSides(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	s.ApplySnapshot(domain.BookSnapshot{
		Venue:      domain.VenueA,
		Instrument: "yes-1",
		Bids: []domain.PriceLevel{
			{Price: 0.40, Size: 10},
			{Price: 0.55, Size: 5},
			{Price: 0.50, Size: 7},
		},
		Asks: []domain.PriceLevel{
			{Price: 0.70, Size: 3},
			{Price: 0.60, Size: 8},
		},
		AsOf: now,
	})

	q, ok := s.Best(domain.VenueA, "yes-1")
	if !ok {
		t.Fatal("expected quote to be available")
	}
	if q.BestBid != 0.55 {
		t.Errorf("best bid: expected 0.55, got %v", q.BestBid)
	}
	if q.BestAsk != 0.60 {
		t.Errorf("best ask: expected 0.60, got %v", q.BestAsk)
	}
	if !q.AsOf.Equal(now) {
		t.Errorf("quote AsOf mismatch: %v", q.AsOf)
	}
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	snap := domain.BookSnapshot{
		Venue:      domain.VenueB,
		Instrument: "no-1",
		Bids:       []domain.PriceLevel{{Price: 0.30, Size: 4}},
		Asks:       []domain.PriceLevel{{Price: 0.35, Size: 6}},
		AsOf:       now,
	}
	s.ApplySnapshot(snap)
	s.ApplySnapshot(snap)

	bids, asks := s.Depth(domain.VenueB, "no-1")
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("expected 1 level per side, got %d bids %d asks", len(bids), len(asks))
	}
}

func TestApplyDeltaUpsertAndRemove(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	s.ApplySnapshot(domain.BookSnapshot{
		Venue:      domain.VenueA,
		Instrument: "yes-1",
		Asks: []domain.PriceLevel{
			{Price: 0.60, Size: 8},
			{Price: 0.70, Size: 3},
		},
		AsOf: now,
	})

	// Insert a new best ask.
	s.ApplyDelta(domain.BookDelta{
		Venue: domain.VenueA, Instrument: "yes-1",
		Side: domain.SideAsk, Price: 0.58, Size: 2, AsOf: now,
	})
	q, _ := s.Best(domain.VenueA, "yes-1")
	if q.BestAsk != 0.58 {
		t.Fatalf("after insert: expected best ask 0.58, got %v", q.BestAsk)
	}

	// Replace the size of an existing level; the ladder must not grow.
	s.ApplyDelta(domain.BookDelta{
		Venue: domain.VenueA, Instrument: "yes-1",
		Side: domain.SideAsk, Price: 0.60, Size: 12, AsOf: now,
	})
	_, asks := s.Depth(domain.VenueA, "yes-1")
	if len(asks) != 3 {
		t.Fatalf("after replace: expected 3 asks, got %d", len(asks))
	}
	if asks[1].Price != 0.60 || asks[1].Size != 12 {
		t.Errorf("after replace: expected level 0.60/12, got %v/%v", asks[1].Price, asks[1].Size)
	}

	// Size zero removes exactly that level.
	s.ApplyDelta(domain.BookDelta{
		Venue: domain.VenueA, Instrument: "yes-1",
		Side: domain.SideAsk, Price: 0.58, Size: 0, AsOf: now,
	})
	q, _ = s.Best(domain.VenueA, "yes-1")
	if q.BestAsk != 0.60 {
		t.Errorf("after remove: expected best ask 0.60, got %v", q.BestAsk)
	}
}

func TestApplyDeltaRemoveUnknownPriceIsNoop(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	s.ApplySnapshot(domain.BookSnapshot{
		Venue:      domain.VenueA,
		Instrument: "yes-1",
		Bids:       []domain.PriceLevel{{Price: 0.40, Size: 10}},
		AsOf:       now,
	})
	s.ApplyDelta(domain.BookDelta{
		Venue: domain.VenueA, Instrument: "yes-1",
		Side: domain.SideBid, Price: 0.41, Size: 0, AsOf: now,
	})

	bids, _ := s.Depth(domain.VenueA, "yes-1")
	if len(bids) != 1 || bids[0].Price != 0.40 {
		t.Errorf("ladder changed by removal of unknown price: %v", bids)
	}
}

func TestBestReportsStaleBookUnavailable(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := asOf
	s := NewStore(
		WithStalenessHorizon(10*time.Second),
		WithClock(func() time.Time { return clock }),
	)

	s.ApplySnapshot(domain.BookSnapshot{
		Venue:      domain.VenueA,
		Instrument: "yes-1",
		Bids:       []domain.PriceLevel{{Price: 0.40, Size: 10}},
		Asks:       []domain.PriceLevel{{Price: 0.45, Size: 10}},
		AsOf:       asOf,
	})

	// Exactly at the horizon the quote is still usable.
	clock = asOf.Add(10 * time.Second)
	if _, ok := s.Best(domain.VenueA, "yes-1"); !ok {
		t.Fatal("quote at the horizon should still be available")
	}

	// A moment past the horizon it is unavailable, not zero.
	clock = asOf.Add(10*time.Second + time.Millisecond)
	if q, ok := s.Best(domain.VenueA, "yes-1"); ok {
		t.Fatalf("stale quote should be unavailable, got %+v", q)
	}
}

func TestBestUnknownInstrument(t *testing.T) {
	s := NewStore()
	if _, ok := s.Best(domain.VenueA, "missing"); ok {
		t.Fatal("expected no quote for unknown instrument")
	}
}
