package reporting

import (
	"context"
	"testing"
	"time"
)

func TestCallsSummary_RequiresUserAndRange(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if _, err := s.CallsSummary(context.Background(), CallsSummaryRequest{}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	now := time.Now()
	if _, err := s.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u", Range: TimeRange{From: now, To: now}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}

func TestCallsSummary_CountsOutcomesAndDirections(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	recs := []CallRecord{
		{SessionID: "1", CallerID: "a", CalleeID: "b", Outcome: OutcomeCompleted, DurationSeconds: 60, EndedAt: base},
		{SessionID: "2", CallerID: "b", CalleeID: "a", Outcome: OutcomeCompleted, DurationSeconds: 30, EndedAt: base.Add(time.Minute)},
		{SessionID: "3", CallerID: "a", CalleeID: "c", Outcome: OutcomeRejected, EndedAt: base.Add(2 * time.Minute)},
		{SessionID: "4", CallerID: "c", CalleeID: "a", Outcome: OutcomeMissed, EndedAt: base.Add(3 * time.Minute)},
		{SessionID: "5", CallerID: "b", CalleeID: "c", Outcome: OutcomeCompleted, DurationSeconds: 99, EndedAt: base},
		{SessionID: "6", CallerID: "a", CalleeID: "b", Outcome: OutcomeCompleted, DurationSeconds: 10, EndedAt: base.AddDate(0, -1, 0)},
	}
	for _, r := range recs {
		if err := s.RecordCall(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// duplicate write is ignored
	_ = s.RecordCall(ctx, recs[0])

	sum, err := s.CallsSummary(ctx, CallsSummaryRequest{UserID: "a", Range: MonthToDate(base.Add(time.Hour), time.UTC)})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalCalls != 4 || sum.CompletedCalls != 2 || sum.RejectedCalls != 1 || sum.MissedCalls != 1 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if sum.OutgoingCalls != 2 || sum.IncomingCalls != 2 || sum.DistinctPeers != 2 {
		t.Fatalf("unexpected directions %+v", sum)
	}
	if sum.TotalDurationSeconds != 90 || sum.AverageDurationSeconds != 45 {
		t.Fatalf("unexpected durations %+v", sum)
	}
}

func TestRecordCall_ReusedSessionIDIsANewCall(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	first := CallRecord{CallID: "c1", SessionID: "s1", CallerID: "a", CalleeID: "b", Outcome: OutcomeCompleted, DurationSeconds: 20, EndedAt: base}
	second := CallRecord{CallID: "c2", SessionID: "s1", CallerID: "a", CalleeID: "b", Outcome: OutcomeCompleted, DurationSeconds: 200, EndedAt: base.Add(2 * time.Hour)}
	for _, r := range []CallRecord{first, first, second} {
		if err := s.RecordCall(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	sum, err := s.CallsSummary(ctx, CallsSummaryRequest{UserID: "a", Range: MonthToDate(base.Add(3*time.Hour), time.UTC)})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalCalls != 2 || sum.TotalDurationSeconds != 220 {
		t.Fatalf("expected both calls recorded once, got %+v", sum)
	}
}

func TestRecordCall_Validates(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if err := s.RecordCall(context.Background(), CallRecord{SessionID: "x"}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMonthToDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	r := MonthToDate(now, nil)
	if !r.From.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) || !r.To.After(now) {
		t.Fatalf("unexpected range %+v", r)
	}
}
