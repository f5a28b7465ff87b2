package domain

import "context"

// PairStore provides read access to the market-pair registry.
type PairStore interface {
	List(ctx context.Context) ([]InstrumentPair, error)
	Get(ctx context.Context, id string) (InstrumentPair, error)
}

// SessionStore archives terminal execution sessions.
type SessionStore interface {
	Archive(ctx context.Context, s ExecutionSession) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionSession, error)
}

// BookMirror is a write-through external mirror of best-bid/ask state, kept
// for out-of-process consumers. Mirror failures must never block the in-memory
// book path.
type BookMirror interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, venue Venue, instrument string) (Quote, error)
}

// EventBus publishes progress events for external reporting surfaces.
type EventBus interface {
	Publish(ctx context.Context, ev ProgressEvent) error
}
