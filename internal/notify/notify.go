// Package notify emits guardian (Wali) notification triggers. Delivery content
// and guardian policy belong to a downstream subscriber; this package only
// guarantees each trigger point fires at most once per call.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callguard/pkg/logger"
	"callguard/pkg/metrics"

	"github.com/google/uuid"
)

type Type string

const (
	TypeInvitationSent Type = "invitation_sent"
	TypeCallStarted    Type = "call_started"
	TypeCallEnded      Type = "call_ended"
)

type Event struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"sessionId"`
	CallID     string         `json:"callId,omitempty"`
	CallerID   string         `json:"callerId"`
	CalleeID   string         `json:"calleeId"`
	Type       Type           `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Publisher hands an event to the notification collaborator.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

const defaultDedupeTTL = 24 * time.Hour

// Service deduplicates triggers by (call, type) before publishing. The call is
// identified by CallID when set, so a reused session id does not inherit the
// previous call's triggers.
type Service struct {
	pub Publisher
	log *slog.Logger
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	clock func() time.Time
}

func NewService(pub Publisher, log *slog.Logger) *Service {
	return &Service{
		pub:   pub,
		log:   logger.Component(log, "notify"),
		ttl:   defaultDedupeTTL,
		seen:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Trigger publishes ev unless the same (call, type) already fired.
// Publish failures are logged and swallowed. It reports whether ev was published.
func (s *Service) Trigger(ctx context.Context, ev Event) bool {
	if ev.SessionID == "" || ev.Type == "" {
		return false
	}
	now := s.clock().UTC()
	key := dedupeKey(ev)

	s.mu.Lock()
	s.pruneLocked(now)
	if _, dup := s.seen[key]; dup {
		s.mu.Unlock()
		metrics.NotificationsPublished.WithLabelValues(string(ev.Type), "duplicate").Inc()
		return false
	}
	s.seen[key] = now
	s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}

	if err := s.pub.Publish(ctx, ev); err != nil {
		metrics.NotificationsPublished.WithLabelValues(string(ev.Type), "failed").Inc()
		s.log.Error("notification publish failed", "type", ev.Type, "session_id", ev.SessionID, "err", err)
		return false
	}
	metrics.NotificationsPublished.WithLabelValues(string(ev.Type), "published").Inc()
	return true
}

func dedupeKey(ev Event) string {
	id := ev.SessionID
	if ev.CallID != "" {
		id = ev.SessionID + "/" + ev.CallID
	}
	return id + "|" + string(ev.Type)
}

func (s *Service) pruneLocked(now time.Time) {
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
}

// LogPublisher writes notifications to the structured log. Used when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.Component(log, "notify")}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.log.InfoContext(ctx, "wali notification",
		"notification_id", ev.ID,
		"type", ev.Type,
		"session_id", ev.SessionID,
		"call_id", ev.CallID,
		"caller_id", ev.CallerID,
		"callee_id", ev.CalleeID,
	)
	return nil
}

// MemoryPublisher collects events in memory. It is not intended for production use.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
