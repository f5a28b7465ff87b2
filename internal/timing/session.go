// Package timing provides session-scoped latency instrumentation. A Session
// records named checkpoints along one execution attempt; a Tracker aggregates
// checkpoint statistics across sessions for bottleneck analysis.
package timing

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Checkpoint is one named timing mark within a session.
type Checkpoint struct {
	Name          string
	At            time.Time
	SinceStart    time.Duration
	SincePrevious time.Duration
}

// Session is an ordered sequence of checkpoints for one logical attempt.
// Checkpoints are monotonically increasing in wall-clock time. After the
// terminal checkpoint is recorded the session is read-only.
type Session struct {
	mu          sync.Mutex
	id          string
	startedAt   time.Time
	checkpoints []Checkpoint
	terminal    string
	done        bool
	now         func() time.Time
}

// newSession is called by Tracker.Start.
func newSession(id, terminal string, now func() time.Time) *Session {
	return &Session{
		id:        id,
		startedAt: now(),
		terminal:  terminal,
		now:       now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Mark records a named checkpoint. Marks after the terminal checkpoint are
// ignored.
func (s *Session) Mark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return
	}

	at := s.now()
	cp := Checkpoint{
		Name:       name,
		At:         at,
		SinceStart: at.Sub(s.startedAt),
	}
	if n := len(s.checkpoints); n > 0 {
		cp.SincePrevious = at.Sub(s.checkpoints[n-1].At)
	} else {
		cp.SincePrevious = cp.SinceStart
	}
	s.checkpoints = append(s.checkpoints, cp)

	if name == s.terminal {
		s.done = true
	}
}

// Checkpoints returns a copy of the recorded checkpoints.
func (s *Session) Checkpoints() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Checkpoint(nil), s.checkpoints...)
}

// TotalElapsed is measured from session start to the last checkpoint.
func (s *Session) TotalElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.checkpoints); n > 0 {
		return s.checkpoints[n-1].At.Sub(s.startedAt)
	}
	return 0
}

// Successful reports whether the designated terminal checkpoint was recorded.
func (s *Session) Successful() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// String renders the session as a one-line checkpoint trace.
func (s *Session) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]string, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		parts = append(parts, fmt.Sprintf("%s@%s", cp.Name, cp.SinceStart))
	}
	return fmt.Sprintf("session %s: %s", s.id, strings.Join(parts, " -> "))
}
