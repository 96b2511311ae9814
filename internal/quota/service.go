package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callguard/pkg/logger"
	"callguard/pkg/metrics"
)

const DefaultLimitSeconds int64 = 300

var (
	ErrInvalidArgument   = errors.New("quota: invalid argument")
	ErrLedgerUnavailable = errors.New("quota: ledger unavailable")
)

type Config struct {
	LimitSeconds int64
	// Location decides where calendar months begin. Nil means UTC.
	Location *time.Location
}

// Service is the quota ledger.
//
// Ledger invariants:
// - Usage is per unordered pair per calendar month
// - AddUsage never pushes TotalUsedSeconds past the limit
// - Store failures surface as ErrLedgerUnavailable; callers decide whether to proceed
type Service struct {
	store Store
	limit int64
	loc   *time.Location
	log   *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store, cfg Config, log *slog.Logger) *Service {
	limit := cfg.LimitSeconds
	if limit <= 0 {
		limit = DefaultLimitSeconds
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		limit: limit,
		loc:   loc,
		log:   logger.Component(log, "quota"),
		clock: time.Now,
	}
}

func (s *Service) LimitSeconds() int64 { return s.limit }

func (s *Service) monthKey() string { return MonthKey(s.clock(), s.loc) }

func (s *Service) GetRemaining(ctx context.Context, userA, userB string) (Remaining, error) {
	p, err := NewPair(userA, userB)
	if err != nil {
		return Remaining{}, err
	}
	month := s.monthKey()
	rec, err := s.store.Get(ctx, p, month)
	if err != nil {
		return Remaining{}, s.unavailable("get", err)
	}
	return s.remaining(rec, month), nil
}

func (s *Service) AddUsage(ctx context.Context, userA, userB string, req UsageRequest) (UsagePeriod, error) {
	p, err := NewPair(userA, userB)
	if err != nil {
		return UsagePeriod{}, err
	}
	if req.Seconds < 0 {
		return UsagePeriod{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	rec, applied, err := s.store.Add(ctx, Charge{
		Pair:           p,
		MonthKey:       MonthKey(now, s.loc),
		Seconds:        req.Seconds,
		LimitSeconds:   s.limit,
		IdempotencyKey: req.IdempotencyKey,
		At:             now,
	})
	if err != nil {
		return UsagePeriod{}, s.unavailable("add", err)
	}
	if applied > 0 {
		metrics.ChargedSeconds.Add(float64(applied))
	}
	if applied < req.Seconds {
		s.log.Debug("usage capped",
			"pair", p.Key(),
			"requested", req.Seconds,
			"applied", applied,
			"idempotency_key", req.IdempotencyKey,
		)
	}
	return s.decorate(rec), nil
}

// Reset is an administrative override that zeroes the current month for the pair.
func (s *Service) Reset(ctx context.Context, userA, userB string) (UsagePeriod, error) {
	p, err := NewPair(userA, userB)
	if err != nil {
		return UsagePeriod{}, err
	}
	now := s.clock().UTC()
	rec, err := s.store.Reset(ctx, p, MonthKey(now, s.loc), now)
	if err != nil {
		return UsagePeriod{}, s.unavailable("reset", err)
	}
	s.log.Info("usage reset", "pair", p.Key(), "month", rec.MonthKey)
	return s.decorate(rec), nil
}

// ListPairsForUser returns the current month's records with nonzero usage involving userID.
func (s *Service) ListPairsForUser(ctx context.Context, userID string) ([]UsagePeriod, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	recs, err := s.store.ListByUser(ctx, userID, s.monthKey())
	if err != nil {
		return nil, s.unavailable("list", err)
	}
	out := make([]UsagePeriod, 0, len(recs))
	for _, r := range recs {
		if r.TotalUsedSeconds <= 0 {
			continue
		}
		out = append(out, s.decorate(r))
	}
	return out, nil
}

func (s *Service) decorate(rec UsagePeriod) UsagePeriod {
	rec.LimitExceeded = rec.TotalUsedSeconds >= s.limit
	return rec
}

func (s *Service) remaining(rec UsagePeriod, month string) Remaining {
	left := s.limit - rec.TotalUsedSeconds
	if left < 0 {
		left = 0
	}
	return Remaining{
		TotalUsedSeconds: rec.TotalUsedSeconds,
		RemainingSeconds: left,
		HasTimeRemaining: left > 0,
		LimitExceeded:    rec.TotalUsedSeconds >= s.limit,
		LimitSeconds:     s.limit,
		MonthKey:         month,
	}
}

func (s *Service) unavailable(op string, err error) error {
	metrics.LedgerErrors.WithLabelValues(op).Inc()
	s.log.Error("ledger store failure", "op", op, "err", err)
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}
