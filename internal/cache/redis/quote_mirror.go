package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// QuoteMirror implements domain.BookMirror: a write-through copy of each
// instrument's best-bid/ask for dashboards and other out-of-process readers.
//
// Key schema:
//
//	quote:{venue}:{instrument} - hash with "bid", "ask", and "ts" fields
type QuoteMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteMirror creates a QuoteMirror backed by the given Client. A zero ttl
// keeps entries until overwritten.
func NewQuoteMirror(c *Client, ttl time.Duration) *QuoteMirror {
	return &QuoteMirror{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(venue domain.Venue, instrument string) string {
	return "quote:" + string(venue) + ":" + instrument
}

// SetQuote writes the current best-bid/ask and its as-of timestamp.
func (m *QuoteMirror) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Venue, q.Instrument)

	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"bid", strconv.FormatFloat(q.BestBid, 'f', -1, 64),
		"ask", strconv.FormatFloat(q.BestAsk, 'f', -1, 64),
		"ts", strconv.FormatInt(q.AsOf.UnixNano(), 10),
	)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote reads one mirrored quote. It returns domain.ErrNotFound when the
// instrument has never been mirrored.
func (m *QuoteMirror) GetQuote(ctx context.Context, venue domain.Venue, instrument string) (domain.Quote, error) {
	key := quoteKey(venue, instrument)

	vals, err := m.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{Venue: venue, Instrument: instrument}
	if s, ok := vals["bid"]; ok {
		q.BestBid, _ = strconv.ParseFloat(s, 64)
	}
	if s, ok := vals["ask"]; ok {
		q.BestAsk, _ = strconv.ParseFloat(s, 64)
	}
	if s, ok := vals["ts"]; ok {
		if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
			q.AsOf = time.Unix(0, ns)
		}
	}
	return q, nil
}

var _ domain.BookMirror = (*QuoteMirror)(nil)
