package presence

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"callguard/pkg/logger"
	"callguard/pkg/metrics"
)

// Scope separates the general-purpose channel from the media-signaling channel.
// A user may be connected to both at once.
type Scope string

const (
	ScopeGeneral   Scope = "general"
	ScopeSignaling Scope = "signaling"
)

func (s Scope) Valid() bool { return s == ScopeGeneral || s == ScopeSignaling }

var ErrInvalidArgument = errors.New("presence: invalid argument")

// Entry binds one live connection to a user in one scope.
type Entry struct {
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	Scope        Scope     `json:"scope"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Update is the presence snapshot pushed to every connection of a scope after a Join or Leave.
// Version increases monotonically across the registry so receivers can drop stale snapshots.
type Update struct {
	Scope   Scope    `json:"scope"`
	Online  []string `json:"online"`
	Version uint64   `json:"version"`
}

// Broadcaster delivers presence snapshots. It is always invoked off the caller's goroutine.
type Broadcaster interface {
	BroadcastPresence(u Update)
}

// Registry maps users to live connections per scope.
// The most recently joined connection of a user is authoritative for routing;
// older ones stay resolvable through Connections until they disconnect.
type Registry struct {
	mu      sync.RWMutex
	byConn  map[string]Entry
	byUser  map[Scope]map[string][]Entry // oldest first
	version uint64

	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		byConn: make(map[string]Entry),
		byUser: map[Scope]map[string][]Entry{
			ScopeGeneral:   {},
			ScopeSignaling: {},
		},
		log: logger.Component(log, "presence"),
		now: time.Now,
	}
}

// SetBroadcaster wires the transport that receives presence snapshots.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	r.broadcaster = b
	r.mu.Unlock()
}

// Join records connectionID as the active connection for userID in scope.
// Re-joining an existing connection id moves it.
func (r *Registry) Join(userID string, scope Scope, connectionID string) error {
	if userID == "" || connectionID == "" || !scope.Valid() {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	if prev, ok := r.byConn[connectionID]; ok {
		r.removeLocked(prev)
	}
	e := Entry{UserID: userID, ConnectionID: connectionID, Scope: scope, JoinedAt: r.now().UTC()}
	r.byConn[connectionID] = e
	r.byUser[scope][userID] = append(r.byUser[scope][userID], e)
	upd, b := r.snapshotLocked(scope)
	r.mu.Unlock()

	r.log.Debug("joined", "user_id", userID, "scope", scope, "connection_id", connectionID)
	r.publish(b, upd)
	return nil
}

// Leave removes the entry for connectionID in whichever scope holds it.
func (r *Registry) Leave(connectionID string) (string, bool) {
	r.mu.Lock()
	e, ok := r.byConn[connectionID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	r.removeLocked(e)
	upd, b := r.snapshotLocked(e.Scope)
	r.mu.Unlock()

	r.log.Debug("left", "user_id", e.UserID, "scope", e.Scope, "connection_id", connectionID)
	r.publish(b, upd)
	return e.UserID, true
}

// Resolve returns the authoritative (most recent) connection of userID in scope.
func (r *Registry) Resolve(userID string, scope Scope) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byUser[scope][userID]
	if len(entries) == 0 {
		return "", false
	}
	return entries[len(entries)-1].ConnectionID, true
}

// Connections returns every live connection of userID in scope, most recent first.
func (r *Registry) Connections(userID string, scope Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byUser[scope][userID]
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].ConnectionID)
	}
	return out
}

// Lookup returns the entry for a connection id.
func (r *Registry) Lookup(connectionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[connectionID]
	return e, ok
}

func (r *Registry) IsOnline(userID string, scope Scope) bool {
	_, ok := r.Resolve(userID, scope)
	return ok
}

// ListOnline returns the sorted ids of users with at least one connection in scope.
func (r *Registry) ListOnline(scope Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked(scope)
}

func (r *Registry) onlineLocked(scope Scope) []string {
	users := r.byUser[scope]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// removeLocked purges e; stale entries are deleted, never just marked.
func (r *Registry) removeLocked(e Entry) {
	delete(r.byConn, e.ConnectionID)
	users := r.byUser[e.Scope]
	entries := users[e.UserID]
	for i, cur := range entries {
		if cur.ConnectionID == e.ConnectionID {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(users, e.UserID)
		return
	}
	users[e.UserID] = entries
}

func (r *Registry) snapshotLocked(scope Scope) (Update, Broadcaster) {
	r.version++
	n := 0
	for _, entries := range r.byUser[scope] {
		n += len(entries)
	}
	metrics.OnlineConnections.WithLabelValues(string(scope)).Set(float64(n))
	return Update{Scope: scope, Online: r.onlineLocked(scope), Version: r.version}, r.broadcaster
}

func (r *Registry) publish(b Broadcaster, u Update) {
	if b == nil {
		return
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("presence broadcast panicked", "panic", p)
			}
		}()
		b.BroadcastPresence(u)
	}()
}
