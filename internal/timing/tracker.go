package timing

import (
	"math"
	"sort"
	"sync"
	"time"
)

// defaultMaxSessions bounds retained sessions; the oldest by start time are
// evicted first.
const defaultMaxSessions = 500

// Stats summarizes the since-start latency of one checkpoint name across all
// sessions that recorded it.
type Stats struct {
	Name   string
	Count  int
	Mean   time.Duration
	Median time.Duration
	Min    time.Duration
	Max    time.Duration
	Stdev  time.Duration
	P95    time.Duration
}

// Tracker creates sessions and aggregates their checkpoint statistics. It is
// constructed explicitly and injected into the components that record timing;
// there is no package-level instance.
type Tracker struct {
	maxSessions int
	terminal    string
	now         func() time.Time

	mu       sync.Mutex
	sessions []*Session
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithMaxSessions overrides the session retention bound.
func WithMaxSessions(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxSessions = n
		}
	}
}

// WithTrackerClock overrides the time source. Used by tests.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker whose sessions treat terminalCheckpoint as the
// success marker.
func NewTracker(terminalCheckpoint string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		maxSessions: defaultMaxSessions,
		terminal:    terminalCheckpoint,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start creates and retains a new session. When retention is exceeded the
// oldest session by start time is evicted.
func (t *Tracker) Start(id string) *Session {
	s := newSession(id, t.terminal, t.now)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions = append(t.sessions, s)
	if len(t.sessions) > t.maxSessions {
		oldest := 0
		for i, sess := range t.sessions {
			if sess.StartedAt().Before(t.sessions[oldest].StartedAt()) {
				oldest = i
			}
		}
		t.sessions = append(t.sessions[:oldest], t.sessions[oldest+1:]...)
	}
	return s
}

// Sessions returns the retained sessions, oldest first.
func (t *Tracker) Sessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := append([]*Session(nil), t.sessions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt().Before(out[j].StartedAt())
	})
	return out
}

// StatsFor aggregates the since-start durations of the named checkpoint
// across every retained session that recorded it.
func (t *Tracker) StatsFor(name string) (Stats, bool) {
	t.mu.Lock()
	sessions := append([]*Session(nil), t.sessions...)
	t.mu.Unlock()

	var samples []time.Duration
	for _, s := range sessions {
		for _, cp := range s.Checkpoints() {
			if cp.Name == name {
				samples = append(samples, cp.SinceStart)
				break
			}
		}
	}
	if len(samples) == 0 {
		return Stats{}, false
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	st := Stats{
		Name:   name,
		Count:  len(samples),
		Min:    samples[0],
		Max:    samples[len(samples)-1],
		Median: percentile(samples, 50),
		P95:    percentile(samples, 95),
	}

	var sum float64
	for _, d := range samples {
		sum += float64(d)
	}
	mean := sum / float64(len(samples))
	st.Mean = time.Duration(mean)

	var sq float64
	for _, d := range samples {
		diff := float64(d) - mean
		sq += diff * diff
	}
	st.Stdev = time.Duration(math.Sqrt(sq / float64(len(samples))))

	return st, true
}

// percentile returns the pth percentile of sorted samples using
// nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
