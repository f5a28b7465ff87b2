// Package executor coordinates two-leg hedged executions across both venues.
// Each accepted opportunity runs as an independent session whose fill-wait
// loop blocks only itself.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/timing"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxFillWait  = 300 * time.Second

	// Checkpoint names recorded per session. CheckpointConfirmed is the
	// terminal checkpoint marking confirmed execution.
	CheckpointAccepted      = "opportunity_accepted"
	CheckpointLeg1Submitted = "leg1_submitted"
	CheckpointLeg1Filled    = "leg1_filled"
	CheckpointLeg2Submitted = "leg2_submitted"
	CheckpointLeg2Filled    = "leg2_filled"
	CheckpointConfirmed     = "execution_confirmed"
	CheckpointFailed        = "session_failed"
	CheckpointTimedOut      = "session_timed_out"
)

// OrderClient is the external order-submission/query interface. The
// coordinator treats it as opaque; signing and auth live behind it.
type OrderClient interface {
	SubmitOrder(ctx context.Context, venue domain.Venue, instrument string, side domain.BookSide, price, size float64) (string, error)
	GetOrderStatus(ctx context.Context, venue domain.Venue, orderID string) (domain.OrderStatus, error)
	CancelOrder(ctx context.Context, venue domain.Venue, orderID string) error
}

// EventSink receives structured progress events for the operator channel.
type EventSink interface {
	Publish(ctx context.Context, ev domain.ProgressEvent) error
}

// Config holds coordinator parameters.
type Config struct {
	// Notional is the target spend per opportunity, in settlement units.
	Notional float64
	// PollInterval is the delay between fill-status polls.
	PollInterval time.Duration
	// MaxFillWait bounds the fill-wait for each leg.
	MaxFillWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxFillWait <= 0 {
		c.MaxFillWait = defaultMaxFillWait
	}
}

// Coordinator runs execution sessions. Opportunities whose pair is already
// under execution are rejected so detection passes do not resubmit them.
type Coordinator struct {
	cfg     Config
	orders  OrderClient
	tracker *timing.Tracker
	events  EventSink
	archive domain.SessionStore
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{} // pair IDs under execution
}

// New creates a Coordinator. events and archive may be nil.
func New(cfg Config, orders OrderClient, tracker *timing.Tracker, events EventSink, archive domain.SessionStore, logger *slog.Logger) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		cfg:      cfg,
		orders:   orders,
		tracker:  tracker,
		events:   events,
		archive:  archive,
		logger:   logger.With(slog.String("component", "executor")),
		inFlight: make(map[string]struct{}),
	}
}

// InFlight reports whether a session for the pair is currently running.
func (c *Coordinator) InFlight(pairID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[pairID]
	return ok
}

// Execute runs one opportunity to a terminal state and returns the finished
// session. Sizing is computed once here, against the quotes captured at
// detection time; it is not re-derived mid-flight even if the market moves.
func (c *Coordinator) Execute(ctx context.Context, opp domain.Opportunity) (domain.ExecutionSession, error) {
	c.mu.Lock()
	if _, busy := c.inFlight[opp.PairID]; busy {
		c.mu.Unlock()
		return domain.ExecutionSession{}, fmt.Errorf("executor: pair %s: %w", opp.PairID, domain.ErrAlreadyExists)
	}
	c.inFlight[opp.PairID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, opp.PairID)
		c.mu.Unlock()
	}()

	session := domain.ExecutionSession{
		ID:          uuid.New().String(),
		Opportunity: opp,
		Sizing:      opp.SizeFor(c.cfg.Notional),
		State:       domain.StatePending,
		StartedAt:   time.Now().UTC(),
	}

	ts := c.tracker.Start(session.ID)
	ts.Mark(CheckpointAccepted)

	log := c.logger.With(
		slog.String("session_id", session.ID),
		slog.String("pair_id", opp.PairID),
		slog.String("strategy", string(opp.Strategy)),
	)
	log.Info("session started",
		slog.Float64("cost", opp.Cost),
		slog.Float64("profit_rate", opp.ProfitRate),
		slog.Float64("shares", session.Sizing.Shares),
	)

	c.runLegs(ctx, &session, ts, log)

	session.FinishedAt = time.Now().UTC()
	c.finish(ctx, session, ts, log)
	return session, nil
}

// runLegs drives the state machine through both legs.
func (c *Coordinator) runLegs(ctx context.Context, session *domain.ExecutionSession, ts *timing.Session, log *slog.Logger) {
	opp := session.Opportunity
	shares := session.Sizing.Shares

	// Leg 1: submit.
	orderID, err := c.orders.SubmitOrder(ctx, opp.Leg1.Venue, opp.Leg1.Instrument, domain.SideBid, opp.Leg1.Ask, shares)
	if err != nil {
		session.Reason = fmt.Sprintf("leg 1 submission: %v", err)
		c.transition(ctx, session, ts, domain.StateFailed, CheckpointFailed, log)
		return
	}
	session.Leg1OrderID = orderID
	c.transition(ctx, session, ts, domain.StateLeg1Submitted, CheckpointLeg1Submitted, log)

	// Leg 1: wait for fill. Leg 2 is never submitted unless leg 1 fills, so
	// no partial hedge is intentionally opened.
	if ok := c.waitForFill(ctx, session, ts, opp.Leg1.Venue, orderID, log); !ok {
		return
	}
	c.transition(ctx, session, ts, domain.StateLeg1Filled, CheckpointLeg1Filled, log)

	// Leg 2: submit. A failure here leaves leg 1 filled and unhedged; the
	// session surfaces that exposure but takes no corrective action.
	orderID, err = c.orders.SubmitOrder(ctx, opp.Leg2.Venue, opp.Leg2.Instrument, domain.SideBid, opp.Leg2.Ask, shares)
	if err != nil {
		session.Unhedged = true
		session.Reason = fmt.Sprintf("leg 2 submission after leg 1 fill: %v", err)
		c.transition(ctx, session, ts, domain.StateFailed, CheckpointFailed, log)
		return
	}
	session.Leg2OrderID = orderID
	c.transition(ctx, session, ts, domain.StateLeg2Submitted, CheckpointLeg2Submitted, log)

	if ok := c.waitForFill(ctx, session, ts, opp.Leg2.Venue, orderID, log); !ok {
		session.Unhedged = true
		return
	}
	c.transition(ctx, session, ts, domain.StateLeg2Filled, CheckpointLeg2Filled, log)

	session.State = domain.StateComplete
	ts.Mark(CheckpointConfirmed)
	c.publish(ctx, *session, domain.EventStateChange, "both legs filled")
}

// waitForFill polls order status until filled, cancelled, timed out, or the
// context ends. It mutates the session to a terminal state on failure and
// reports whether the leg filled.
func (c *Coordinator) waitForFill(ctx context.Context, session *domain.ExecutionSession, ts *timing.Session, venue domain.Venue, orderID string, log *slog.Logger) bool {
	deadline := time.Now().Add(c.cfg.MaxFillWait)

	for {
		status, err := c.orders.GetOrderStatus(ctx, venue, orderID)
		if err != nil {
			log.Warn("order status poll failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		} else {
			switch {
			case status.Filled():
				log.Info("leg filled",
					slog.String("order_id", orderID),
					slog.Float64("filled_size", status.FilledSize),
				)
				return true
			case status.Cancelled():
				session.Reason = fmt.Sprintf("order %s: %v", orderID, domain.ErrOrderCancelled)
				c.transition(ctx, session, ts, domain.StateFailed, CheckpointFailed, log)
				return false
			}
		}

		if time.Now().After(deadline) {
			session.Reason = fmt.Sprintf("order %s: %v", orderID, domain.ErrFillTimeout)
			c.transition(ctx, session, ts, domain.StateTimedOut, CheckpointTimedOut, log)
			return false
		}

		select {
		case <-ctx.Done():
			session.Reason = ctx.Err().Error()
			c.transition(ctx, session, ts, domain.StateFailed, CheckpointFailed, log)
			return false
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// transition updates the session state, records a checkpoint, and emits a
// progress event. Every state change is observable.
func (c *Coordinator) transition(ctx context.Context, session *domain.ExecutionSession, ts *timing.Session, state domain.SessionState, checkpoint string, log *slog.Logger) {
	session.State = state
	ts.Mark(checkpoint)
	log.Info("state transition", slog.String("state", string(state)))
	c.publish(ctx, *session, domain.EventStateChange, session.Reason)
}

// finish archives a terminal session and emits the terminal events.
func (c *Coordinator) finish(ctx context.Context, session domain.ExecutionSession, ts *timing.Session, log *slog.Logger) {
	log.Info("session finished",
		slog.String("state", string(session.State)),
		slog.Bool("unhedged", session.Unhedged),
		slog.Duration("total_elapsed", ts.TotalElapsed()),
		slog.String("reason", session.Reason),
	)

	c.publish(ctx, session, domain.EventSessionDone, session.Reason)
	if session.Unhedged {
		c.publish(ctx, session, domain.EventUnhedgedOpen,
			fmt.Sprintf("one-sided position open on %s", session.Opportunity.Leg1.Venue))
	}

	if c.archive != nil {
		if err := c.archive.Archive(ctx, session); err != nil {
			log.Warn("session archive failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, session domain.ExecutionSession, typ domain.EventType, detail string) {
	if c.events == nil {
		return
	}
	ev := domain.ProgressEvent{
		Type:      typ,
		SessionID: session.ID,
		PairID:    session.Opportunity.PairID,
		State:     session.State,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.Warn("progress event publish failed", slog.String("error", err.Error()))
	}
}
