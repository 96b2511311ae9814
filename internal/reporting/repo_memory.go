package reporting

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.

type MemoryRepo struct {
	mu sync.Mutex

	calls []CallRecord
	seen  map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{seen: map[string]struct{}{}} }

func (r *MemoryRepo) AppendCall(ctx context.Context, rec CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[rec.Key()]; dup {
		return nil
	}
	r.seen[rec.Key()] = struct{}{}
	r.calls = append(r.calls, rec)
	return nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, userID string, from, to time.Time) ([]CallRecord, error) {
	if userID == "" {
		return nil, errors.New("user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, c := range r.calls {
		if c.CallerID != userID && c.CalleeID != userID {
			continue
		}
		if c.EndedAt.Before(from) || !c.EndedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}
