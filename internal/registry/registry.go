// Package registry loads the market-pair registry produced by the external
// matching process. Pairs are immutable once loaded.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// pairRecord is the on-disk shape of one registry entry.
type pairRecord struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	VenueAYes string `json:"venue_a_yes"`
	VenueANo  string `json:"venue_a_no"`
	VenueBYes string `json:"venue_b_yes"`
	VenueBNo  string `json:"venue_b_no"`
	Deadline  string `json:"deadline,omitempty"` // RFC 3339, optional
}

// Load reads and validates a registry file.
func Load(path string) ([]domain.InstrumentPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var records []pairRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(records))
	pairs := make([]domain.InstrumentPair, 0, len(records))
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("registry: entry %d: missing id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate pair id %q", r.ID)
		}
		seen[r.ID] = struct{}{}

		if r.VenueAYes == "" || r.VenueANo == "" || r.VenueBYes == "" || r.VenueBNo == "" {
			return nil, fmt.Errorf("registry: pair %q: all four token identifiers are required", r.ID)
		}

		pair := domain.InstrumentPair{
			ID:        r.ID,
			Label:     r.Label,
			VenueAYes: r.VenueAYes,
			VenueANo:  r.VenueANo,
			VenueBYes: r.VenueBYes,
			VenueBNo:  r.VenueBNo,
		}
		if r.Deadline != "" {
			t, err := time.Parse(time.RFC3339, r.Deadline)
			if err != nil {
				return nil, fmt.Errorf("registry: pair %q: bad deadline: %w", r.ID, err)
			}
			pair.Deadline = t
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// Static is an in-memory domain.PairStore over a loaded registry.
type Static struct {
	pairs []domain.InstrumentPair
	byID  map[string]domain.InstrumentPair
}

// NewStatic wraps loaded pairs in a PairStore.
func NewStatic(pairs []domain.InstrumentPair) *Static {
	byID := make(map[string]domain.InstrumentPair, len(pairs))
	for _, p := range pairs {
		byID[p.ID] = p
	}
	return &Static{
		pairs: append([]domain.InstrumentPair(nil), pairs...),
		byID:  byID,
	}
}

// List returns every pair in registry order.
func (s *Static) List(_ context.Context) ([]domain.InstrumentPair, error) {
	return append([]domain.InstrumentPair(nil), s.pairs...), nil
}

// Get returns one pair by id.
func (s *Static) Get(_ context.Context, id string) (domain.InstrumentPair, error) {
	p, ok := s.byID[id]
	if !ok {
		return domain.InstrumentPair{}, fmt.Errorf("registry: pair %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Instruments returns the union of token identifiers per venue across pairs,
// for feed subscription.
func Instruments(pairs []domain.InstrumentPair) map[domain.Venue][]string {
	seen := map[domain.Venue]map[string]struct{}{
		domain.VenueA: {},
		domain.VenueB: {},
	}
	out := map[domain.Venue][]string{}
	for _, p := range pairs {
		for venue, ids := range p.Instruments() {
			for _, id := range ids {
				if _, ok := seen[venue][id]; ok {
					continue
				}
				seen[venue][id] = struct{}{}
				out[venue] = append(out[venue], id)
			}
		}
	}
	return out
}

var _ domain.PairStore = (*Static)(nil)
