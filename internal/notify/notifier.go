// Package notify relays progress events to operator chat channels. Events are
// rendered into short human-readable messages and fanned out to every
// configured sender; delivery is best effort and never blocks trading.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Sender delivers one rendered message to a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel (e.g. "telegram").
	Name() string
}

// Notifier formats progress events and dispatches them to all senders. It
// keeps a set of allowed event types; Publish drops events outside the set.
// An empty set allows everything.
type Notifier struct {
	senders []Sender
	allowed map[domain.EventType]bool
	logger  *slog.Logger
}

var _ domain.EventBus = (*Notifier)(nil)

// NewNotifier creates a Notifier delivering to the given senders, filtered to
// the given event types. If events is empty, all types pass.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		allowed[domain.EventType(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Publish renders the event and dispatches it to every sender. Individual
// sender failures are logged and collected; one failing channel does not stop
// delivery to the others.
func (n *Notifier) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	if len(n.allowed) > 0 && !n.allowed[ev.Type] {
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	title, message := render(ev)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", string(ev.Type)),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// render turns a progress event into a chat-friendly title and body.
func render(ev domain.ProgressEvent) (title, message string) {
	switch ev.Type {
	case domain.EventOpportunity:
		title = "Arbitrage opportunity"
	case domain.EventStateChange:
		title = fmt.Sprintf("Session %s", ev.State)
	case domain.EventSessionDone:
		title = fmt.Sprintf("Session finished: %s", ev.State)
	case domain.EventUnhedgedOpen:
		title = "UNHEDGED POSITION OPEN"
	case domain.EventFeedFatal:
		title = "Market feed down"
	default:
		title = string(ev.Type)
	}

	var b strings.Builder
	if ev.PairID != "" {
		fmt.Fprintf(&b, "pair: %s\n", ev.PairID)
	}
	if ev.SessionID != "" {
		fmt.Fprintf(&b, "session: %s\n", ev.SessionID)
	}
	if ev.Detail != "" {
		b.WriteString(ev.Detail)
		b.WriteByte('\n')
	}
	if !ev.At.IsZero() {
		fmt.Fprintf(&b, "at: %s", ev.At.UTC().Format("15:04:05.000 MST"))
	}
	return title, b.String()
}
