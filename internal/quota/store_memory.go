package quota

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryPeriod struct {
	rec     UsagePeriod
	charges map[string]struct{}
}

// MemoryStore keeps usage in process. Intended for tests and single-node local runs.
// Only the latest month written is retained; a write for a newer month drops
// every older period together with its charge keys.
type MemoryStore struct {
	mu      sync.Mutex
	periods map[string]*memoryPeriod // month|pair
	latest  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{periods: make(map[string]*memoryPeriod)}
}

func memoryKey(p Pair, month string) string { return month + "|" + p.Key() }

// period returns the record for p+month, materializing it if needed. Caller holds mu.
func (s *MemoryStore) period(p Pair, month string) *memoryPeriod {
	k := memoryKey(p, month)
	mp, ok := s.periods[k]
	if !ok {
		mp = &memoryPeriod{rec: emptyPeriod(p, month), charges: make(map[string]struct{})}
		s.periods[k] = mp
	}
	return mp
}

// rollover evicts periods older than month. Caller holds mu.
func (s *MemoryStore) rollover(month string) {
	if month <= s.latest {
		return
	}
	s.latest = month
	for k, mp := range s.periods {
		if mp.rec.MonthKey < month {
			delete(s.periods, k)
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, p Pair, month string) (UsagePeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mp, ok := s.periods[memoryKey(p, month)]; ok {
		return mp.rec, nil
	}
	return emptyPeriod(p, month), nil
}


func (s *MemoryStore) Add(_ context.Context, c Charge) (UsagePeriod, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(c.MonthKey)
	mp := s.period(c.Pair, c.MonthKey)
	if c.IdempotencyKey != "" {
		if _, seen := mp.charges[c.IdempotencyKey]; seen {
			return mp.rec, 0, nil
		}
		mp.charges[c.IdempotencyKey] = struct{}{}
	}

	add := cappedAddition(mp.rec.TotalUsedSeconds, c.Seconds, c.LimitSeconds)
	mp.rec.TotalUsedSeconds += add
	mp.rec.UpdatedAt = c.At
	return mp.rec, add, nil
}

func (s *MemoryStore) Reset(_ context.Context, p Pair, month string, at time.Time) (UsagePeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(month)
	mp := s.period(p, month)
	mp.rec.TotalUsedSeconds = 0
	mp.rec.UpdatedAt = at
	return mp.rec, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID, month string) ([]UsagePeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []UsagePeriod
	for _, mp := range s.periods {
		if mp.rec.MonthKey != month {
			continue
		}
		if mp.rec.UserA == userID || mp.rec.UserB == userID {
			out = append(out, mp.rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairKey < out[j].PairKey })
	return out, nil
}
