package timing

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// stepClock advances a fixed amount on every read, so checkpoint gaps are
// deterministic.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	cur := c.t
	c.t = c.t.Add(c.step)
	return cur
}

func TestSessionCheckpoints(t *testing.T) {
	clock := &stepClock{
		t:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		step: 100 * time.Millisecond,
	}
	tr := NewTracker("done", WithTrackerClock(clock.now))

	s := tr.Start("s1")
	s.Mark("submitted")
	s.Mark("filled")
	s.Mark("done")

	cps := s.Checkpoints()
	if len(cps) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(cps))
	}
	if cps[0].SinceStart != 100*time.Millisecond {
		t.Errorf("first since-start: got %v", cps[0].SinceStart)
	}
	if cps[0].SincePrevious != cps[0].SinceStart {
		t.Errorf("first since-previous must equal since-start, got %v", cps[0].SincePrevious)
	}
	if cps[1].SincePrevious != 100*time.Millisecond {
		t.Errorf("second since-previous: got %v", cps[1].SincePrevious)
	}
	if cps[2].SinceStart != 300*time.Millisecond {
		t.Errorf("terminal since-start: got %v", cps[2].SinceStart)
	}
	if s.TotalElapsed() != 300*time.Millisecond {
		t.Errorf("total elapsed: got %v", s.TotalElapsed())
	}
	if !s.Successful() {
		t.Error("session with terminal checkpoint must be successful")
	}
}

func TestSessionIgnoresMarksAfterTerminal(t *testing.T) {
	tr := NewTracker("done")
	s := tr.Start("s1")
	s.Mark("done")
	s.Mark("late")

	cps := s.Checkpoints()
	if len(cps) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(cps))
	}
	if cps[0].Name != "done" {
		t.Errorf("unexpected checkpoint %q", cps[0].Name)
	}
}

func TestSessionWithoutTerminalIsNotSuccessful(t *testing.T) {
	tr := NewTracker("done")
	s := tr.Start("s1")
	s.Mark("submitted")
	s.Mark("failed")

	if s.Successful() {
		t.Error("session without terminal checkpoint must not be successful")
	}
}

func TestSessionString(t *testing.T) {
	tr := NewTracker("done")
	s := tr.Start("s1")
	s.Mark("submitted")
	s.Mark("done")

	out := s.String()
	if !strings.Contains(out, "s1") || !strings.Contains(out, "submitted") || !strings.Contains(out, "->") {
		t.Errorf("trace missing parts: %q", out)
	}
}

func TestTrackerEvictsOldestSession(t *testing.T) {
	clock := &stepClock{
		t:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		step: time.Second,
	}
	tr := NewTracker("done", WithMaxSessions(3), WithTrackerClock(clock.now))

	for i := 0; i < 5; i++ {
		tr.Start(fmt.Sprintf("s%d", i))
	}

	sessions := tr.Sessions()
	if len(sessions) != 3 {
		t.Fatalf("expected 3 retained sessions, got %d", len(sessions))
	}
	if sessions[0].ID() != "s2" {
		t.Errorf("oldest retained: expected s2, got %s", sessions[0].ID())
	}
	if sessions[2].ID() != "s4" {
		t.Errorf("newest retained: expected s4, got %s", sessions[2].ID())
	}
}

func TestStatsForAggregatesAcrossSessions(t *testing.T) {
	clock := &stepClock{
		t:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		step: 10 * time.Millisecond,
	}
	tr := NewTracker("done", WithTrackerClock(clock.now))

	// Start and Mark each consume one clock step, so every session records a
	// 10ms since-start sample.
	for i := 0; i < 5; i++ {
		s := tr.Start(fmt.Sprintf("s%d", i))
		s.Mark("filled")
	}

	st, ok := tr.StatsFor("filled")
	if !ok {
		t.Fatal("expected stats for recorded checkpoint")
	}
	if st.Count != 5 {
		t.Errorf("count: got %d", st.Count)
	}
	if st.Min != 10*time.Millisecond || st.Max != 10*time.Millisecond {
		t.Errorf("min/max: got %v/%v", st.Min, st.Max)
	}
	if st.Mean != 10*time.Millisecond || st.Median != 10*time.Millisecond {
		t.Errorf("mean/median: got %v/%v", st.Mean, st.Median)
	}
	if st.Stdev != 0 {
		t.Errorf("stdev of identical samples: got %v", st.Stdev)
	}
	if st.P95 != 10*time.Millisecond {
		t.Errorf("p95: got %v", st.P95)
	}
}

func TestStatsForUnknownCheckpoint(t *testing.T) {
	tr := NewTracker("done")
	tr.Start("s1").Mark("filled")

	if _, ok := tr.StatsFor("never"); ok {
		t.Error("expected no stats for unrecorded checkpoint")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	samples := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		3 * time.Millisecond,
		4 * time.Millisecond,
	}
	if got := percentile(samples, 50); got != 2*time.Millisecond {
		t.Errorf("p50: expected 2ms, got %v", got)
	}
	if got := percentile(samples, 95); got != 4*time.Millisecond {
		t.Errorf("p95: expected 4ms, got %v", got)
	}
	if got := percentile(samples, 100); got != 4*time.Millisecond {
		t.Errorf("p100: expected 4ms, got %v", got)
	}
}
