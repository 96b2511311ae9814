package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.

type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
}

// Service logs internal audit information.
// Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// QuotaReset describes an administrative zeroing of a pair's monthly usage.
type QuotaReset struct {
	ActorUserID      string
	ActorRole        string
	IPAddress        string
	PairKey          string
	MonthKey         string
	PreviousUsedSecs int64
	Reason           string
}

// LogQuotaReset records who reset which pair, and how much usage was discarded.
func (s *Service) LogQuotaReset(ctx context.Context, r QuotaReset) error {
	if r.ActorUserID == "" || r.PairKey == "" {
		return ErrInvalidEvent
	}
	meta, err := json.Marshal(map[string]any{
		"previous_used_seconds": r.PreviousUsedSecs,
		"reason":                r.Reason,
	})
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		Type:        EventTypeQuotaReset,
		ActorUserID: r.ActorUserID,
		ActorRole:   r.ActorRole,
		IPAddress:   r.IPAddress,
		PairKey:     r.PairKey,
		MonthKey:    r.MonthKey,
		Message:     "quota usage reset",
		Metadata:    string(meta),
	})
}

// List returns recent events, newest first. Limit defaults to 50 and is capped at 500.
func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return s.repo.List(ctx, f)
}
