package memstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"matchwire/internal/adapters/store"
	"matchwire/internal/domain/event"
)

func testRecord(matchID, eventType, ts, player string) event.Record {
	return event.Record{
		Event: event.Event{
			EventID:   "id-" + eventType + "-" + ts,
			MatchID:   matchID,
			EventType: eventType,
			Timestamp: ts,
			TeamID:    "home",
			PlayerID:  player,
		},
		Season: "2024/2025",
	}
}

func matchRows(t *testing.T, s *Store, matchID string, opts ...store.QueryOption) []event.Record {
	t.Helper()
	it, err := s.MatchTimeline(context.Background(), matchID, opts...)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	recs, err := store.Collect(it)
	if err != nil {
		t.Fatalf("unexpected iterator error: %v", err)
	}
	return recs
}

func typeRows(t *testing.T, s *Store, matchID, eventType string, opts ...store.QueryOption) []event.Record {
	t.Helper()
	it, err := s.TypeTimeline(context.Background(), matchID, eventType, opts...)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	recs, err := store.Collect(it)
	if err != nil {
		t.Fatalf("unexpected iterator error: %v", err)
	}
	return recs
}

func TestMemstore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Test empty store
	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Errorf("expected count 0, got %d (err %v)", n, err)
	}

	created, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create a row")
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}

	recs := matchRows(t, s, "m1")
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].PlayerID != "keita" {
		t.Errorf("expected player keita, got %s", recs[0].PlayerID)
	}
	if recs[0].Season != "2024/2025" {
		t.Errorf("expected season 2024/2025, got %s", recs[0].Season)
	}
}

func TestMemstore_UpsertReplacesSamePosition(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "costa"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected redelivery to replace, not create")
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected count to stay 1, got %d", n)
	}
	recs := matchRows(t, s, "m1")
	if len(recs) != 1 || recs[0].PlayerID != "costa" {
		t.Errorf("expected single replaced row with player costa, got %+v", recs)
	}
}

func TestMemstore_UpsertDropsStaleTypeEntry(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Corrected event at the same position carries a different type.
	if _, err := s.Upsert(ctx, testRecord("m1", "pass", "2024-11-02T20:15:00Z", "keita")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if goals := typeRows(t, s, "m1", "goal"); len(goals) != 0 {
		t.Errorf("expected no goals after correction, got %d", len(goals))
	}
	if passes := typeRows(t, s, "m1", "pass"); len(passes) != 1 {
		t.Errorf("expected 1 pass, got %d", len(passes))
	}
	if all := matchRows(t, s, "m1"); len(all) != 1 {
		t.Errorf("expected 1 row on match timeline, got %d", len(all))
	}
}

func TestMemstore_ChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	timestamps := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		timestamps = append(timestamps, fmt.Sprintf("2024-11-02T20:%02d:00Z", i))
	}
	shuffled := append([]string(nil), timestamps...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for _, ts := range shuffled {
		if _, err := s.Upsert(ctx, testRecord("m1", "pass", ts, "p")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recs := matchRows(t, s, "m1")
	if len(recs) != len(timestamps) {
		t.Fatalf("expected %d records, got %d", len(timestamps), len(recs))
	}
	for i, r := range recs {
		if r.Timestamp != timestamps[i] {
			t.Fatalf("out of order at %d: expected %s, got %s", i, timestamps[i], r.Timestamp)
		}
	}
}

func TestMemstore_TypeTimelineFiltersExactType(t *testing.T) {
	ctx := context.Background()
	s := New()

	seed := []event.Record{
		testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita"),
		testRecord("m1", "goal", "2024-11-02T20:45:30Z", "costa"),
		testRecord("m1", "pass", "2024-11-02T19:30:00Z", "mori"),
		// shares the "goal" prefix; must not leak into the goal timeline
		testRecord("m1", "goal_kick", "2024-11-02T20:20:00Z", "sow"),
	}
	for _, r := range seed {
		if _, err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	goals := typeRows(t, s, "m1", "goal")
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(goals))
	}
	if goals[0].PlayerID != "keita" || goals[1].PlayerID != "costa" {
		t.Errorf("goals out of order: %s, %s", goals[0].PlayerID, goals[1].PlayerID)
	}
	for _, g := range goals {
		if g.EventType != "goal" {
			t.Errorf("unexpected type %q in goal timeline", g.EventType)
		}
	}
}

func TestMemstore_MatchesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Upsert(ctx, testRecord("m2", "goal", "2024-11-02T20:16:00Z", "costa")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := matchRows(t, s, "m1")
	if len(recs) != 1 || recs[0].MatchID != "m1" {
		t.Errorf("expected only m1 rows, got %+v", recs)
	}
}

func TestMemstore_LimitAndStartAfter(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		ts := fmt.Sprintf("2024-11-02T20:0%d:00Z", i)
		if _, err := s.Upsert(ctx, testRecord("m1", "pass", ts, "p")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page1 := matchRows(t, s, "m1", store.WithLimit(2))
	if len(page1) != 2 {
		t.Fatalf("expected 2 records on page 1, got %d", len(page1))
	}

	page2 := matchRows(t, s, "m1",
		store.WithLimit(2), store.WithStartAfter(page1[1].Timestamp))
	if len(page2) != 2 {
		t.Fatalf("expected 2 records on page 2, got %d", len(page2))
	}
	if page2[0].Timestamp <= page1[1].Timestamp {
		t.Errorf("page 2 must start after page 1: %s vs %s", page2[0].Timestamp, page1[1].Timestamp)
	}

	page3 := matchRows(t, s, "m1",
		store.WithLimit(2), store.WithStartAfter(page2[1].Timestamp))
	if len(page3) != 1 {
		t.Fatalf("expected 1 record on page 3, got %d", len(page3))
	}
}

func TestMemstore_EmptyMatch(t *testing.T) {
	s := New()

	if recs := matchRows(t, s, "nope"); len(recs) != 0 {
		t.Errorf("expected empty timeline, got %d records", len(recs))
	}
	if recs := typeRows(t, s, "nope", "goal"); len(recs) != 0 {
		t.Errorf("expected empty type timeline, got %d records", len(recs))
	}
}

func TestMemstore_ClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:15:00Z", "keita")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if _, err := s.Upsert(ctx, testRecord("m1", "goal", "2024-11-02T20:16:00Z", "costa")); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on upsert, got %v", err)
	}
	if _, err := s.MatchTimeline(ctx, "m1"); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on query, got %v", err)
	}
	if _, err := s.Count(ctx); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on count, got %v", err)
	}
	// Closing twice is fine.
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestMemstore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	const writers = 8
	const perWriter = 50

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ts := fmt.Sprintf("2024-11-02T%02d:%02d:00Z", w+10, i)
				if _, err := s.Upsert(ctx, testRecord("m1", "pass", ts, "p")); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(w)
	}

	// Readers race the writers; results only need to be well-formed.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				it, err := s.MatchTimeline(ctx, "m1")
				if err != nil {
					t.Errorf("unexpected query error: %v", err)
					return
				}
				recs, err := store.Collect(it)
				if err != nil {
					t.Errorf("unexpected iterator error: %v", err)
					return
				}
				for j := 1; j < len(recs); j++ {
					if recs[j-1].Timestamp >= recs[j].Timestamp {
						t.Errorf("out of order under concurrency: %s >= %s",
							recs[j-1].Timestamp, recs[j].Timestamp)
						return
					}
				}
			}
		}()
	}

	wg.Wait()

	if n, _ := s.Count(ctx); n != writers*perWriter {
		t.Errorf("expected %d rows, got %d", writers*perWriter, n)
	}
}
