package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// defaultStreamMaxLen is the approximate maximum stream length enforced via
// XADD MAXLEN ~.
const defaultStreamMaxLen int64 = 10000

// eventStream is the stream external reporting surfaces consume.
const eventStream = "hedgebot:events"

// EventBus implements domain.EventBus on a capped Redis stream, giving
// dashboards and chat relays a durable, ordered event feed.
type EventBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client, maxLen int64) *EventBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &EventBus{rdb: c.Underlying(), maxLen: maxLen}
}

// wireEvent is the JSON shape appended to the stream.
type wireEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	PairID    string `json:"pair_id,omitempty"`
	State     string `json:"state,omitempty"`
	Detail    string `json:"detail,omitempty"`
	At        string `json:"at"`
}

// Publish appends one progress event to the stream with approximate trimming.
func (b *EventBus) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	payload, err := json.Marshal(wireEvent{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		PairID:    ev.PairID,
		State:     string(ev.State),
		Detail:    ev.Detail,
		At:        ev.At.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"event": payload},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", eventStream, err)
	}
	return nil
}

var _ domain.EventBus = (*EventBus)(nil)
