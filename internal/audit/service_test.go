package audit

import (
	"context"
	"strings"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_LogQuotaReset(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogQuotaReset(context.Background(), QuotaReset{
		ActorUserID:      "admin-1",
		ActorRole:        "admin",
		IPAddress:        "1.2.3.4",
		PairKey:          "a:b",
		MonthKey:         "2024-05",
		PreviousUsedSecs: 300,
		Reason:           "support ticket",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.Type != EventTypeQuotaReset || e.PairKey != "a:b" || e.IPAddress != "1.2.3.4" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
	if !strings.Contains(e.Metadata, `"previous_used_seconds":300`) {
		t.Fatalf("expected previous usage in metadata, got %s", e.Metadata)
	}
}

func TestService_LogQuotaResetRequiresActorAndPair(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.LogQuotaReset(context.Background(), QuotaReset{PairKey: "a:b"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_ListFiltersNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, pair := range []string{"a:b", "c:d", "a:b"} {
		if err := svc.LogQuotaReset(ctx, QuotaReset{ActorUserID: "admin-1", PairKey: pair, Reason: "r"}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	_ = svc.Append(ctx, Event{Type: EventTypeAdminAction, PairKey: "a:b"})

	got, err := svc.List(ctx, Filter{Type: EventTypeQuotaReset, PairKey: "a:b"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != repo.Events()[2].ID {
		t.Fatalf("expected the two a:b resets newest first, got %+v", got)
	}

	got, _ = svc.List(ctx, Filter{Limit: 1})
	if len(got) != 1 || got[0].Type != EventTypeAdminAction {
		t.Fatalf("expected only the latest event, got %+v", got)
	}
}

func TestMemoryRepo_IgnoresDuplicateIDs(t *testing.T) {
	repo := NewMemoryRepo()
	e := Event{ID: "e1", Type: EventTypeAdminAction}
	_ = repo.Append(context.Background(), e)
	_ = repo.Append(context.Background(), e)
	if n := len(repo.Events()); n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
}
