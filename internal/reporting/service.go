package reporting

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Call records are immutable; AppendCall ignores a second write for the same session.
type Repository interface {
	AppendCall(ctx context.Context, rec CallRecord) error
	ListCalls(ctx context.Context, userID string, from, to time.Time) ([]CallRecord, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// RecordCall stores the history row for a finalized session.
func (s *Service) RecordCall(ctx context.Context, rec CallRecord) error {
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	if rec.SessionID == "" || rec.CallerID == "" || rec.CalleeID == "" || rec.Outcome == "" {
		return ErrInvalidRequest
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = s.clock().UTC()
	}
	return s.repo.AppendCall(ctx, rec)
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.UserID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{UserID: req.UserID}
	peers := map[string]struct{}{}
	for _, c := range rows {
		out.TotalCalls++
		if c.CallerID == req.UserID {
			out.OutgoingCalls++
			peers[c.CalleeID] = struct{}{}
		} else {
			out.IncomingCalls++
			peers[c.CallerID] = struct{}{}
		}
		switch c.Outcome {
		case OutcomeCompleted:
			out.CompletedCalls++
			out.TotalDurationSeconds += c.DurationSeconds
		case OutcomeRejected:
			out.RejectedCalls++
		case OutcomeCanceled:
			out.CanceledCalls++
		case OutcomeMissed:
			out.MissedCalls++
		case OutcomeQuotaBlocked:
			out.QuotaBlockedCalls++
		}
	}
	out.DistinctPeers = len(peers)
	if out.CompletedCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / int64(out.CompletedCalls)
	}
	return out, nil
}

// MonthToDate is the range from the start of now's month (in loc) to now.
func MonthToDate(now time.Time, loc *time.Location) TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	return TimeRange{From: start, To: n.Add(time.Nanosecond)}
}
