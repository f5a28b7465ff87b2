package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestLoadValidRegistry(t *testing.T) {
	path := writeRegistry(t, `[
		{
			"id": "p1",
			"label": "Rate cut by March",
			"venue_a_yes": "a-yes-1",
			"venue_a_no": "a-no-1",
			"venue_b_yes": "b-yes-1",
			"venue_b_no": "b-no-1",
			"deadline": "2026-03-31T00:00:00Z"
		}
	]`)

	pairs, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	p := pairs[0]
	if p.ID != "p1" || p.VenueAYes != "a-yes-1" || p.VenueBNo != "b-no-1" {
		t.Errorf("unexpected pair: %+v", p)
	}
	if p.Deadline.IsZero() {
		t.Error("deadline should be parsed")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeRegistry(t, `[
		{"id": "p1", "venue_a_yes": "a", "venue_a_no": "b", "venue_b_yes": "c", "venue_b_no": "d"},
		{"id": "p1", "venue_a_yes": "e", "venue_a_no": "f", "venue_b_yes": "g", "venue_b_no": "h"}
	]`)

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadRejectsMissingTokens(t *testing.T) {
	path := writeRegistry(t, `[
		{"id": "p1", "venue_a_yes": "a", "venue_a_no": "", "venue_b_yes": "c", "venue_b_no": "d"}
	]`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing token identifier")
	}
}

func TestLoadRejectsBadDeadline(t *testing.T) {
	path := writeRegistry(t, `[
		{"id": "p1", "venue_a_yes": "a", "venue_a_no": "b", "venue_b_yes": "c", "venue_b_no": "d", "deadline": "tomorrow"}
	]`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable deadline")
	}
}

func TestStaticGet(t *testing.T) {
	pairs := []domain.InstrumentPair{
		{ID: "p1", VenueAYes: "a", VenueANo: "b", VenueBYes: "c", VenueBNo: "d"},
	}
	s := NewStatic(pairs)

	p, err := s.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("unexpected pair %+v", p)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInstrumentsDeduplicatesPerVenue(t *testing.T) {
	pairs := []domain.InstrumentPair{
		{ID: "p1", VenueAYes: "a1", VenueANo: "a2", VenueBYes: "b1", VenueBNo: "b2"},
		{ID: "p2", VenueAYes: "a1", VenueANo: "a3", VenueBYes: "b3", VenueBNo: "b2"},
	}

	byVenue := Instruments(pairs)
	if got := len(byVenue[domain.VenueA]); got != 3 {
		t.Errorf("venue A instruments: expected 3, got %d: %v", got, byVenue[domain.VenueA])
	}
	if got := len(byVenue[domain.VenueB]); got != 3 {
		t.Errorf("venue B instruments: expected 3, got %d: %v", got, byVenue[domain.VenueB])
	}
}
