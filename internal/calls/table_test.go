package calls

import (
	"sync"
	"testing"
	"time"
)

func TestTable_FinalizeAndMarkers(t *testing.T) {
	tb := NewTable()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tb.Put(Session{ID: "s1", State: StateInvited, CalleeID: "b"})
	tb.Finalize("s1", now, time.Minute)

	if _, ok := tb.Get("s1"); ok {
		t.Fatalf("finalized session must be removed")
	}
	if !tb.IsFinalized("s1", now.Add(30*time.Second)) {
		t.Fatalf("expected marker inside ttl")
	}
	if tb.IsFinalized("s1", now.Add(2*time.Minute)) {
		t.Fatalf("expected marker expired")
	}
	if n := tb.PurgeFinalized(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
}

func TestTable_PendingForOrdersByCreation(t *testing.T) {
	tb := NewTable()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tb.Put(Session{ID: "late", State: StateInvited, CalleeID: "b", CreatedAt: base.Add(time.Minute)})
	tb.Put(Session{ID: "early", State: StateInvited, CalleeID: "b", CreatedAt: base})
	tb.Put(Session{ID: "active", State: StateActive, CalleeID: "b", CreatedAt: base})
	tb.Put(Session{ID: "other", State: StateInvited, CalleeID: "c", CreatedAt: base})

	got := tb.PendingFor("b")
	if len(got) != 2 || got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("unexpected pending %+v", got)
	}
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	tb := NewTable()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tb.Lock("s1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("expected 100, got %d", counter)
	}
	if len(tb.locks.m) != 0 {
		t.Fatalf("expected lock entries to be released, got %d", len(tb.locks.m))
	}
}
