package notify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"callguard/pkg/logger"
	"callguard/pkg/utils"
)

func TestTrigger_OncePerSessionAndType(t *testing.T) {
	pub := NewMemoryPublisher()
	s := NewService(pub, logger.Discard())
	ctx := context.Background()

	ev := Event{SessionID: "s1", CallerID: "a", CalleeID: "b", Type: TypeCallStarted}
	if !s.Trigger(ctx, ev) {
		t.Fatalf("first trigger should publish")
	}
	if s.Trigger(ctx, ev) {
		t.Fatalf("second trigger must be deduplicated")
	}
	if !s.Trigger(ctx, Event{SessionID: "s1", Type: TypeCallEnded}) {
		t.Fatalf("different type should publish")
	}

	evs := pub.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" || evs[0].OccurredAt.IsZero() {
		t.Fatalf("expected id and timestamp filled, got %+v", evs[0])
	}
}

func TestTrigger_IgnoresIncompleteEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	s := NewService(pub, logger.Discard())
	if s.Trigger(context.Background(), Event{Type: TypeCallEnded}) {
		t.Fatalf("expected missing session id to be ignored")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }

func TestTrigger_SwallowsPublishErrors(t *testing.T) {
	s := NewService(failingPublisher{}, logger.Discard())
	if s.Trigger(context.Background(), Event{SessionID: "s1", Type: TypeCallEnded}) {
		t.Fatalf("expected false on publish failure")
	}
}

func TestTrigger_DedupeWindowExpires(t *testing.T) {
	pub := NewMemoryPublisher()
	s := NewService(pub, logger.Discard())
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	ev := Event{SessionID: "s1", Type: TypeInvitationSent}
	s.Trigger(context.Background(), ev)
	now = now.Add(defaultDedupeTTL + time.Minute)
	s.Trigger(context.Background(), ev)

	if n := len(pub.Events()); n != 2 {
		t.Fatalf("expected marker to expire, got %d events", n)
	}
}

func TestTrigger_NewCallOnReusedSessionPublishes(t *testing.T) {
	pub := NewMemoryPublisher()
	s := NewService(pub, logger.Discard())
	ctx := context.Background()

	first := Event{SessionID: "s1", CallID: "c1", Type: TypeCallStarted}
	if !s.Trigger(ctx, first) {
		t.Fatalf("first call should publish")
	}
	if s.Trigger(ctx, first) {
		t.Fatalf("same call must be deduplicated")
	}
	if !s.Trigger(ctx, Event{SessionID: "s1", CallID: "c2", Type: TypeCallStarted}) {
		t.Fatalf("a new call on the same session id should publish")
	}
	if n := len(pub.Events()); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
}

func TestRedisPublisher_Integration(t *testing.T) {
	addr := os.Getenv("NOTIFY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NOTIFY_TEST_REDIS_ADDR not set")
	}
	rdb, err := utils.OpenRedis(context.Background(), utils.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	stream := "callguard_test:wali"
	p := NewRedisPublisher(rdb, stream)
	if err := p.Publish(context.Background(), Event{ID: "n1", SessionID: "s1", Type: TypeCallEnded, Payload: map[string]any{"x": 1}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	n, err := rdb.XLen(context.Background(), stream).Result()
	if err != nil || n == 0 {
		t.Fatalf("expected stream entry, n=%d err=%v", n, err)
	}
}
