package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps audit events in process memory. Appends with an already stored
// ID are ignored so retried writes stay single.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	ids    map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{ids: map[string]struct{}{}} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[e.ID]; dup {
		return nil
	}
	r.ids[e.ID] = struct{}{}
	r.events = append(r.events, e)
	return nil
}

// List returns matching events newest first.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0)
	for i := len(r.events) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if f.matches(r.events[i]) {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

// Events returns every stored event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
