package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/timing"
)

type submitCall struct {
	venue      domain.Venue
	instrument string
	side       domain.BookSide
	price      float64
	size       float64
	orderID    string
}

// fakeOrders is a scripted order gateway. failSubmit fails the nth submission
// (1-based); statusOf overrides the default immediately-filled behavior.
type fakeOrders struct {
	mu         sync.Mutex
	attempts   int
	submits    []submitCall
	failSubmit int
	statusOf   func(orderID string) (domain.OrderStatus, error)
	cancelled  []string
}

func (f *fakeOrders) SubmitOrder(_ context.Context, venue domain.Venue, instrument string, side domain.BookSide, price, size float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failSubmit == f.attempts {
		return "", errors.New("gateway rejected order")
	}
	call := submitCall{
		venue: venue, instrument: instrument, side: side,
		price: price, size: size,
		orderID: fmt.Sprintf("ord-%d", f.attempts),
	}
	f.submits = append(f.submits, call)
	return call.orderID, nil
}

func (f *fakeOrders) GetOrderStatus(_ context.Context, _ domain.Venue, orderID string) (domain.OrderStatus, error) {
	f.mu.Lock()
	statusOf := f.statusOf
	f.mu.Unlock()
	if statusOf != nil {
		return statusOf(orderID)
	}
	return domain.OrderStatus{OrderID: orderID, Status: "filled", FilledSize: 1, TotalSize: 1}, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, _ domain.Venue, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (r *recordingSink) Publish(_ context.Context, ev domain.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) byType(t domain.EventType) []domain.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ProgressEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingArchive struct {
	mu       sync.Mutex
	sessions []domain.ExecutionSession
}

func (r *recordingArchive) Archive(_ context.Context, s domain.ExecutionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *recordingArchive) ListRecent(_ context.Context, _ int) ([]domain.ExecutionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ExecutionSession(nil), r.sessions...), nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:     "opp-1",
		PairID: "pair-1",
		Label:  "Test market",
		Strategy: domain.StrategyYesANoB,
		Leg1:   domain.Leg{Venue: domain.VenueA, Instrument: "a-yes", Ask: 0.60},
		Leg2:   domain.Leg{Venue: domain.VenueB, Instrument: "b-no", Ask: 0.35},
		Cost:   0.95, Profit: 0.05, ProfitRate: 0.05 / 0.95 * 100,
		DetectedAt: time.Now(),
	}
}

func newTestCoordinator(orders OrderClient, sink EventSink, archive domain.SessionStore) (*Coordinator, *timing.Tracker) {
	tracker := timing.NewTracker(CheckpointConfirmed)
	cfg := Config{
		Notional:     100.0,
		PollInterval: time.Millisecond,
		MaxFillWait:  time.Second,
	}
	return New(cfg, orders, tracker, sink, archive, discard()), tracker
}

func TestExecuteCompletesBothLegs(t *testing.T) {
	orders := &fakeOrders{}
	sink := &recordingSink{}
	archive := &recordingArchive{}
	coord, tracker := newTestCoordinator(orders, sink, archive)

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateComplete {
		t.Fatalf("state: expected COMPLETE, got %s", session.State)
	}
	if session.Unhedged {
		t.Error("completed session must not be unhedged")
	}
	if session.Leg1OrderID == "" || session.Leg2OrderID == "" {
		t.Errorf("order IDs must be recorded: %q %q", session.Leg1OrderID, session.Leg2OrderID)
	}

	// Both submissions are buys sized from the notional at detection cost.
	if len(orders.submits) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(orders.submits))
	}
	wantShares := 100.0 / 0.95
	for i, call := range orders.submits {
		if call.side != domain.SideBid {
			t.Errorf("submission %d: expected buy side, got %s", i+1, call.side)
		}
		if diff := call.size - wantShares; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("submission %d: expected %v shares, got %v", i+1, wantShares, call.size)
		}
	}
	if orders.submits[0].venue != domain.VenueA || orders.submits[0].instrument != "a-yes" {
		t.Errorf("leg 1 routing: %+v", orders.submits[0])
	}
	if orders.submits[1].venue != domain.VenueB || orders.submits[1].instrument != "b-no" {
		t.Errorf("leg 2 routing: %+v", orders.submits[1])
	}

	// Terminal session is archived and announced.
	if len(archive.sessions) != 1 {
		t.Fatalf("expected 1 archived session, got %d", len(archive.sessions))
	}
	if got := sink.byType(domain.EventSessionDone); len(got) != 1 {
		t.Errorf("expected 1 session_done event, got %d", len(got))
	}
	if got := sink.byType(domain.EventUnhedgedOpen); len(got) != 0 {
		t.Errorf("expected no unhedged events, got %d", len(got))
	}

	// Timing session reached the terminal checkpoint.
	sessions := tracker.Sessions()
	if len(sessions) != 1 || !sessions[0].Successful() {
		t.Error("timing session must record the terminal checkpoint")
	}
}

func TestExecuteLeg1SubmitFailure(t *testing.T) {
	orders := &fakeOrders{failSubmit: 1}
	sink := &recordingSink{}
	coord, _ := newTestCoordinator(orders, sink, nil)

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateFailed {
		t.Fatalf("state: expected FAILED, got %s", session.State)
	}
	if session.Unhedged {
		t.Error("nothing filled, session must not be unhedged")
	}
	if orders.attempts != 1 {
		t.Errorf("leg 2 must never be attempted, got %d attempts", orders.attempts)
	}
	if session.Reason == "" {
		t.Error("failure reason must be recorded")
	}
}

func TestExecuteLeg1CancelledNoPartialHedge(t *testing.T) {
	orders := &fakeOrders{statusOf: func(orderID string) (domain.OrderStatus, error) {
		return domain.OrderStatus{OrderID: orderID, Status: "cancelled"}, nil
	}}
	sink := &recordingSink{}
	coord, _ := newTestCoordinator(orders, sink, nil)

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateFailed {
		t.Fatalf("state: expected FAILED, got %s", session.State)
	}
	if session.Unhedged {
		t.Error("cancelled leg 1 leaves no position, must not be unhedged")
	}
	if orders.attempts != 1 {
		t.Errorf("leg 2 must never be submitted after leg 1 cancel, got %d attempts", orders.attempts)
	}
	if !strings.Contains(session.Reason, domain.ErrOrderCancelled.Error()) {
		t.Errorf("reason must name the cancellation, got %q", session.Reason)
	}
}

func TestExecuteLeg2SubmitFailureFlagsUnhedged(t *testing.T) {
	orders := &fakeOrders{failSubmit: 2}
	sink := &recordingSink{}
	archive := &recordingArchive{}
	coord, _ := newTestCoordinator(orders, sink, archive)

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateFailed {
		t.Fatalf("state: expected FAILED, got %s", session.State)
	}
	if !session.Unhedged {
		t.Fatal("leg 2 failure after leg 1 fill must flag unhedged")
	}
	if got := sink.byType(domain.EventUnhedgedOpen); len(got) != 1 {
		t.Errorf("expected 1 unhedged_open event, got %d", len(got))
	}
	// No automatic unwind of the filled leg.
	if len(orders.cancelled) != 0 {
		t.Errorf("coordinator must not cancel the filled leg, cancelled %v", orders.cancelled)
	}
	if len(archive.sessions) != 1 || !archive.sessions[0].Unhedged {
		t.Error("archived session must carry the unhedged flag")
	}
}

func TestExecuteLeg2CancelledFlagsUnhedged(t *testing.T) {
	orders := &fakeOrders{}
	orders.statusOf = func(orderID string) (domain.OrderStatus, error) {
		if orderID == "ord-1" {
			return domain.OrderStatus{OrderID: orderID, Status: "filled", FilledSize: 1, TotalSize: 1}, nil
		}
		return domain.OrderStatus{OrderID: orderID, Status: "cancelled"}, nil
	}
	sink := &recordingSink{}
	coord, _ := newTestCoordinator(orders, sink, nil)

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateFailed {
		t.Fatalf("state: expected FAILED, got %s", session.State)
	}
	if !session.Unhedged {
		t.Error("cancelled leg 2 after leg 1 fill must flag unhedged")
	}
}

func TestExecuteFillTimeout(t *testing.T) {
	orders := &fakeOrders{statusOf: func(orderID string) (domain.OrderStatus, error) {
		return domain.OrderStatus{OrderID: orderID, Status: "open"}, nil
	}}
	sink := &recordingSink{}
	tracker := timing.NewTracker(CheckpointConfirmed)
	coord := New(Config{
		Notional:     100.0,
		PollInterval: time.Millisecond,
		MaxFillWait:  10 * time.Millisecond,
	}, orders, tracker, sink, nil, discard())

	session, err := coord.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if session.State != domain.StateTimedOut {
		t.Fatalf("state: expected TIMED_OUT, got %s", session.State)
	}
	if session.Unhedged {
		t.Error("timed-out leg 1 leaves no position, must not be unhedged")
	}
}

func TestExecuteRejectsInFlightPair(t *testing.T) {
	release := make(chan struct{})
	orders := &fakeOrders{statusOf: func(orderID string) (domain.OrderStatus, error) {
		select {
		case <-release:
			return domain.OrderStatus{OrderID: orderID, Status: "filled", FilledSize: 1, TotalSize: 1}, nil
		default:
			return domain.OrderStatus{OrderID: orderID, Status: "open"}, nil
		}
	}}
	coord, _ := newTestCoordinator(orders, nil, nil)

	done := make(chan domain.ExecutionSession, 1)
	go func() {
		s, _ := coord.Execute(context.Background(), testOpportunity())
		done <- s
	}()

	waitUntil := time.Now().Add(time.Second)
	for !coord.InFlight("pair-1") {
		if time.Now().After(waitUntil) {
			t.Fatal("first execution never became in-flight")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := coord.Execute(context.Background(), testOpportunity())
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	close(release)
	s := <-done
	if s.State != domain.StateComplete {
		t.Fatalf("first execution should complete, got %s", s.State)
	}
	if coord.InFlight("pair-1") {
		t.Error("pair must be released after the session finishes")
	}
}
