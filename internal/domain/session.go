package domain

import "time"

// SessionState is the execution coordinator state machine position.
type SessionState string

const (
	StatePending       SessionState = "PENDING"
	StateLeg1Submitted SessionState = "LEG1_SUBMITTED"
	StateLeg1Filled    SessionState = "LEG1_FILLED"
	StateLeg2Submitted SessionState = "LEG2_SUBMITTED"
	StateLeg2Filled    SessionState = "LEG2_FILLED"
	StateComplete      SessionState = "COMPLETE"
	StateFailed        SessionState = "FAILED"
	StateTimedOut      SessionState = "TIMED_OUT"
)

// Terminal reports whether the state ends the session.
func (s SessionState) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// ExecutionSession records one accepted opportunity from acceptance through a
// terminal outcome. It is archived once terminal.
type ExecutionSession struct {
	ID          string
	Opportunity Opportunity
	Sizing      Sizing
	State       SessionState

	Leg1OrderID string
	Leg2OrderID string

	// Unhedged is set when leg 2 fails after leg 1 has filled, leaving an
	// open one-sided position the coordinator surfaces but does not unwind.
	Unhedged bool
	Reason   string

	StartedAt  time.Time
	FinishedAt time.Time
}

// OrderStatus is the venue-reported state of a submitted order.
type OrderStatus struct {
	OrderID    string
	FilledSize float64
	TotalSize  float64
	Status     string // "open", "filled", "cancelled"
}

// Filled reports whether the order is terminally filled.
func (s OrderStatus) Filled() bool { return s.Status == "filled" }

// Cancelled reports whether the order was terminally cancelled.
func (s OrderStatus) Cancelled() bool { return s.Status == "cancelled" }
