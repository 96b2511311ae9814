package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"callguard/internal/presence"
	"callguard/pkg/logger"
)

type fakeResolver map[string]string

func (f fakeResolver) Resolve(userID string, _ presence.Scope) (string, bool) {
	c, ok := f[userID]
	return c, ok
}

type fakeTransport struct {
	mu        sync.Mutex
	stale     map[string]bool
	groups    map[string]int
	listeners int

	direct     []string
	grouped    []string
	broadcasts []Event
}

func (f *fakeTransport) SendToConnection(conn string, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stale[conn] {
		return errors.New("connection closed")
	}
	f.direct = append(f.direct, conn)
	return nil
}

func (f *fakeTransport) SendToGroup(_ presence.Scope, group string, ev Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.groups[group]
	if n > 0 {
		f.grouped = append(f.grouped, group)
	}
	return n
}

func (f *fakeTransport) Broadcast(_ presence.Scope, ev Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, ev)
	return f.listeners
}

func TestDeliver_DirectFirst(t *testing.T) {
	tr := &fakeTransport{groups: map[string]int{"user:bob": 2}}
	r := New(fakeResolver{"bob": "c1"}, tr, Options{}, logger.Discard())

	d := r.Deliver(context.Background(), NewEvent(EventOffer, "s1", nil), "bob", presence.ScopeSignaling)
	if !d.Delivered || d.Path != PathDirect {
		t.Fatalf("expected direct delivery, got %+v", d)
	}
	if len(tr.grouped) != 0 {
		t.Fatalf("group must not be used when direct succeeds")
	}
}

func TestDeliver_StaleDirectFallsBackToGroup(t *testing.T) {
	tr := &fakeTransport{stale: map[string]bool{"c1": true}, groups: map[string]int{"user:bob": 1}}
	r := New(fakeResolver{"bob": "c1"}, tr, Options{}, logger.Discard())

	d := r.Deliver(context.Background(), NewEvent(EventCallInvite, "s1", nil), "bob", presence.ScopeGeneral)
	if !d.Delivered || d.Path != PathGroup || d.Sent != 1 {
		t.Fatalf("expected group delivery, got %+v", d)
	}
}

func TestDeliver_UnreachableIsNotAnError(t *testing.T) {
	tr := &fakeTransport{listeners: 5}
	r := New(fakeResolver{}, tr, Options{}, logger.Discard())

	d := r.Deliver(context.Background(), NewEvent(EventCallInvite, "s1", nil), "bob", presence.ScopeGeneral)
	if d.Delivered || d.Path != PathNone {
		t.Fatalf("expected no delivery, got %+v", d)
	}
	if len(tr.broadcasts) != 0 {
		t.Fatalf("broadcast fallback must be opt-in")
	}
}

func TestDeliver_BroadcastFallbackOnlyForEstablishment(t *testing.T) {
	tr := &fakeTransport{listeners: 3}
	r := New(fakeResolver{}, tr, Options{BroadcastFallback: true}, logger.Discard())

	d := r.Deliver(context.Background(), NewEvent(EventCallInvite, "s1", nil), "bob", presence.ScopeGeneral)
	if !d.Delivered || d.Path != PathBroadcast || !d.Degraded {
		t.Fatalf("expected degraded broadcast, got %+v", d)
	}
	if got := tr.broadcasts[0]; got.To != "bob" || got.SessionID != "s1" {
		t.Fatalf("broadcast must carry target and session, got %+v", got)
	}

	d = r.Deliver(context.Background(), NewEvent(EventCallEnded, "s1", nil), "bob", presence.ScopeGeneral)
	if d.Delivered || d.Path != PathNone {
		t.Fatalf("non-establishment events must not broadcast, got %+v", d)
	}
}

func TestFanout_UsesDirectAndGroup(t *testing.T) {
	tr := &fakeTransport{groups: map[string]int{"user:bob": 2}}
	r := New(fakeResolver{"bob": "c1"}, tr, Options{}, logger.Discard())

	d := r.Fanout(context.Background(), NewEvent(EventCallStarted, "s1", nil), "bob", presence.ScopeGeneral)
	if !d.Delivered || d.Path != PathDirect || d.Sent != 3 {
		t.Fatalf("expected direct+group fanout, got %+v", d)
	}
}

func TestFanoutScopes_Merges(t *testing.T) {
	tr := &fakeTransport{groups: map[string]int{"user:bob": 1}}
	r := New(fakeResolver{}, tr, Options{}, logger.Discard())

	d := r.FanoutScopes(context.Background(), NewEvent(EventCallEnded, "s1", nil), "bob", presence.ScopeGeneral, presence.ScopeSignaling)
	if !d.Delivered || d.Path != PathGroup || d.Sent != 2 {
		t.Fatalf("unexpected merged delivery %+v", d)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(EventOffer, "s", nil)
	b := NewEvent(EventOffer, "s", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q %q", a.ID, b.ID)
	}
}
