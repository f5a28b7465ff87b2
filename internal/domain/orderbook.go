package domain

import "time"

// BookSide labels one side of an orderbook.
type BookSide string

const (
	SideBid BookSide = "BUY"
	SideAsk BookSide = "SELL"
)

// PriceLevel is a single price+size entry in an orderbook ladder.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot is a full replacement of both sides of one instrument's book
// on one venue.
type BookSnapshot struct {
	Venue      Venue
	Instrument string
	Bids       []PriceLevel
	Asks       []PriceLevel
	AsOf       time.Time
}

// BookDelta is an incremental single-level update. Size zero removes the
// level at exactly that price.
type BookDelta struct {
	Venue      Venue
	Instrument string
	Side       BookSide
	Price      float64
	Size       float64
	AsOf       time.Time
}

// Quote is the best-bid/best-ask view of one instrument on one venue. AsOf is
// the time of the most recent book update; consumers must treat quotes older
// than their staleness horizon as unavailable, never as zero.
type Quote struct {
	Venue      Venue
	Instrument string
	BestBid    float64
	BestAsk    float64
	AsOf       time.Time
}
