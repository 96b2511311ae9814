package gateway

import (
	"errors"
	"testing"

	"callguard/internal/presence"
	"callguard/internal/relay"
	"callguard/pkg/logger"
)

func testClient(id, user string, scope presence.Scope, buf int) *client {
	return &client{
		id:     id,
		userID: user,
		scope:  scope,
		send:   make(chan []byte, buf),
		done:   make(chan struct{}),
		log:    logger.Discard(),
	}
}

func TestHub_RoutesByConnectionGroupAndScope(t *testing.T) {
	h := NewHub(logger.Discard())
	a1 := testClient("a1", "alice", presence.ScopeGeneral, 4)
	a2 := testClient("a2", "alice", presence.ScopeGeneral, 4)
	as := testClient("as", "alice", presence.ScopeSignaling, 4)
	h.register(a1)
	h.register(a2)
	h.register(as)

	ev := relay.NewEvent(relay.EventCallInvite, "s1", nil)
	if err := h.SendToConnection("a1", ev); err != nil {
		t.Fatalf("direct send: %v", err)
	}
	if n := h.SendToGroup(presence.ScopeGeneral, relay.UserGroup("alice"), ev); n != 2 {
		t.Fatalf("expected 2 group recipients, got %d", n)
	}
	if n := h.Broadcast(presence.ScopeSignaling, ev); n != 1 {
		t.Fatalf("expected 1 signaling recipient, got %d", n)
	}
	if len(a1.send) != 2 || len(a2.send) != 1 || len(as.send) != 1 {
		t.Fatalf("unexpected queue depths %d %d %d", len(a1.send), len(a2.send), len(as.send))
	}

	h.unregister(a1)
	if err := h.SendToConnection("a1", ev); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
	if n := h.SendToGroup(presence.ScopeGeneral, relay.UserGroup("alice"), ev); n != 1 {
		t.Fatalf("expected stale member dropped, got %d", n)
	}
}

func TestClient_EnqueueNeverBlocks(t *testing.T) {
	c := testClient("c1", "alice", presence.ScopeGeneral, 1)
	if err := c.enqueue([]byte("a")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := c.enqueue([]byte("b")); !errors.Is(err, ErrSlowConsumer) {
		t.Fatalf("expected ErrSlowConsumer, got %v", err)
	}
	close(c.done)
	<-c.send
	if err := c.enqueue([]byte("c")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
