package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// EventKind classifies canonical feed events.
type EventKind string

const (
	KindSnapshot EventKind = "snapshot"
	KindDelta    EventKind = "delta"
	// KindFatal is emitted once when the connection gives up reconnecting.
	// It is the last event delivered on the channel.
	KindFatal EventKind = "fatal"
)

// Event is the single canonical shape every inbound frame is normalized into
// at the transport boundary. Downstream code never sees venue wire formats.
type Event struct {
	Kind     EventKind
	Snapshot domain.BookSnapshot
	Delta    domain.BookDelta
	Err      error
}

// --------------------------------------------------------------------------
// Wire DTOs
// --------------------------------------------------------------------------

// wireLevel is a price level as sent by the venue; prices and sizes arrive as
// decimal strings.
type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// wireMessage is the envelope for both event types emitted by the stream:
// full "book" snapshots and incremental "price_change" batches.
type wireMessage struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Bids      []wireLevel  `json:"bids"`
	Asks      []wireLevel  `json:"asks"`
	Changes   []wireChange `json:"changes"`
	Timestamp string       `json:"timestamp"`
}

type wireChange struct {
	AssetID string `json:"asset_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// subscribeCommand is the one control message sent after every (re)connect.
type subscribeCommand struct {
	AssetIDs []string `json:"instrument_ids"`
	Channel  string   `json:"channel"`
}

// parseFrame normalizes one raw frame into zero or more canonical events.
//
// The stream sends liveness replies as plain text (not JSON); those are
// ignored, not errors. Payloads may be a single object or an array of
// objects. Frames that parse but match no known event type are skipped.
func parseFrame(venue domain.Venue, raw []byte, now time.Time) []Event {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var msgs []wireMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil
		}
	case '{':
		var one wireMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil
		}
		msgs = []wireMessage{one}
	default:
		// Plain-text liveness reply ("PONG" etc.).
		return nil
	}

	var events []Event
	for _, m := range msgs {
		switch m.EventType {
		case "book":
			if m.AssetID == "" {
				continue
			}
			events = append(events, Event{
				Kind: KindSnapshot,
				Snapshot: domain.BookSnapshot{
					Venue:      venue,
					Instrument: m.AssetID,
					Bids:       toLevels(m.Bids),
					Asks:       toLevels(m.Asks),
					AsOf:       wireTime(m.Timestamp, now),
				},
			})
		case "price_change":
			asOf := wireTime(m.Timestamp, now)
			for _, ch := range m.Changes {
				if ch.AssetID == "" {
					continue
				}
				price, err := strconv.ParseFloat(ch.Price, 64)
				if err != nil {
					continue
				}
				size, err := strconv.ParseFloat(ch.Size, 64)
				if err != nil {
					continue
				}
				events = append(events, Event{
					Kind: KindDelta,
					Delta: domain.BookDelta{
						Venue:      venue,
						Instrument: ch.AssetID,
						Side:       wireSide(ch.Side),
						Price:      price,
						Size:       size,
						AsOf:       asOf,
					},
				})
			}
		}
	}
	return events
}

func toLevels(in []wireLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lvl := range in {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		s, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

func wireSide(s string) domain.BookSide {
	if s == "SELL" || s == "sell" || s == "asks" {
		return domain.SideAsk
	}
	return domain.SideBid
}

// wireTime parses a millisecond epoch timestamp, falling back to receipt time.
func wireTime(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return now
	}
	return time.UnixMilli(ms)
}
