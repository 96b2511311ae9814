package calls

import (
	"sort"
	"sync"
	"time"
)

// Table is the in-memory call session table. Only non-terminal sessions live in
// it; finalized ids are remembered for a while so late or duplicate events for a
// finished call are recognised and ignored.
type Table struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	finalized map[string]time.Time // id -> expires at

	locks keyedMutex
}

func NewTable() *Table {
	return &Table{
		sessions:  make(map[string]Session),
		finalized: make(map[string]time.Time),
		locks:     keyedMutex{m: make(map[string]*keyedEntry)},
	}
}

// Lock serializes all lifecycle operations for one session id.
func (t *Table) Lock(id string) (unlock func()) { return t.locks.lock(id) }

func (t *Table) Get(id string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Put inserts or replaces a live session.
func (t *Table) Put(s Session) {
	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()
}

// Finalize removes the session and remembers its id until now+ttl.
func (t *Table) Finalize(id string, now time.Time, ttl time.Duration) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.finalized[id] = now.Add(ttl)
	t.mu.Unlock()
}

func (t *Table) IsFinalized(id string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	exp, ok := t.finalized[id]
	return ok && now.Before(exp)
}

// PurgeFinalized drops expired finalized markers and returns how many were removed.
func (t *Table) PurgeFinalized(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, exp := range t.finalized {
		if !now.Before(exp) {
			delete(t.finalized, id)
			n++
		}
	}
	return n
}

// PendingFor returns invited sessions addressed to calleeID, oldest first.
func (t *Table) PendingFor(calleeID string) []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Session
	for _, s := range t.sessions {
		if s.State == StateInvited && s.CalleeID == calleeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Snapshot copies every live session.
func (t *Table) Snapshot() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// CountByState reports how many live sessions are in each state.
func (t *Table) CountByState() map[State]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[State]int{StateInvited: 0, StateActive: 0}
	for _, s := range t.sessions {
		out[s.State]++
	}
	return out
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and frees it when the last holder unlocks.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedEntry
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &keyedEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
