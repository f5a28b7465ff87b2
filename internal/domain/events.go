package domain

import "time"

// EventType classifies events on the operator channel.
type EventType string

const (
	EventOpportunity   EventType = "opportunity"
	EventStateChange   EventType = "state_change"
	EventSessionDone   EventType = "session_done"
	EventFeedFatal     EventType = "feed_fatal"
	EventUnhedgedOpen  EventType = "unhedged_open"
)

// ProgressEvent is a structured record of a coordinator state transition or
// detector finding, suitable for a dashboard or chat relay to consume.
type ProgressEvent struct {
	Type      EventType
	SessionID string
	PairID    string
	State     SessionState
	Detail    string
	At        time.Time
}
