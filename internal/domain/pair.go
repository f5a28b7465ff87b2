package domain

import "time"

// Venue identifies one of the two trading venues.
type Venue string

const (
	VenueA Venue = "venue_a"
	VenueB Venue = "venue_b"
)

// InstrumentPair identifies one logical market expressed as venue-specific
// YES/NO outcome token identifiers on both venues. Pairs are produced by an
// external matching process and are read-only once loaded.
type InstrumentPair struct {
	ID        string
	Label     string
	VenueAYes string
	VenueANo  string
	VenueBYes string
	VenueBNo  string
	// Deadline is the settlement deadline, zero when unknown.
	Deadline time.Time
}

// Instruments returns every token identifier referenced by the pair, keyed by
// venue, for feed subscription.
func (p InstrumentPair) Instruments() map[Venue][]string {
	return map[Venue][]string{
		VenueA: {p.VenueAYes, p.VenueANo},
		VenueB: {p.VenueBYes, p.VenueBNo},
	}
}
