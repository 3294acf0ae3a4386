package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	older := Entry{
		ProfileURL:   "https://www.google.com/maps/contrib/111111111111",
		CandidateURL: "https://www.google.com/maps/contrib/111111111111?hl=en&gl=US",
		Record:       json.RawMessage(`{"level":7,"points":1234}`),
		FetchedAt:    base,
	}
	newer := Entry{
		ProfileURL:   "https://www.google.com/maps/contrib/222222222222",
		CandidateURL: "https://www.google.com/maps/contrib/222222222222",
		Record:       json.RawMessage(`{"level":3,"points":50}`),
		FetchedAt:    base.Add(time.Minute),
	}
	for _, e := range []Entry{older, newer} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ProfileURL != newer.ProfileURL {
		t.Errorf("newest first expected, got %q", got[0].ProfileURL)
	}
	if !got[0].FetchedAt.Equal(newer.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", got[0].FetchedAt, newer.FetchedAt)
	}
	if string(got[1].Record) != string(older.Record) {
		t.Errorf("record payload round-trip failed: %s", got[1].Record)
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		e := Entry{
			ProfileURL:   "https://www.google.com/maps/contrib/123456789012",
			CandidateURL: "https://www.google.com/maps/contrib/123456789012",
			Record:       json.RawMessage(`{}`),
			FetchedAt:    time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
