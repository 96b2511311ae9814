package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"callguard/internal/presence"
	"callguard/internal/relay"
	"callguard/pkg/logger"
)

var (
	ErrUnknownConnection = errors.New("gateway: unknown connection")
	ErrSlowConsumer      = errors.New("gateway: send buffer full")
	ErrClosed            = errors.New("gateway: connection closed")
)

// Hub tracks live websocket clients per scope and the broadcast groups they joined.
// It is the wire side of the relay and the presence broadcaster.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*client
	groups map[presence.Scope]map[string]map[string]*client // scope -> group -> conn id

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*client),
		groups: map[presence.Scope]map[string]map[string]*client{
			presence.ScopeGeneral:   {},
			presence.ScopeSignaling: {},
		},
		log: logger.Component(log, "gateway"),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
	h.joinLocked(c, relay.UserGroup(c.userID))
}

func (h *Hub) joinLocked(c *client, group string) {
	members, ok := h.groups[c.scope][group]
	if !ok {
		members = make(map[string]*client)
		h.groups[c.scope][group] = members
	}
	members[c.id] = c
	c.groups = append(c.groups, group)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	for _, g := range c.groups {
		members := h.groups[c.scope][g]
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.groups[c.scope], g)
		}
	}
}

func (h *Hub) SendToConnection(connectionID string, ev relay.Event) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

func (h *Hub) SendToGroup(scope presence.Scope, group string, ev relay.Event) int {
	h.mu.RLock()
	members := make([]*client, 0, len(h.groups[scope][group]))
	for _, c := range h.groups[scope][group] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	return h.sendAll(members, ev)
}

func (h *Hub) Broadcast(scope presence.Scope, ev relay.Event) int {
	h.mu.RLock()
	members := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		if c.scope == scope {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()
	return h.sendAll(members, ev)
}

// BroadcastPresence pushes a presence snapshot to every connection of its scope.
func (h *Hub) BroadcastPresence(u presence.Update) {
	ev := relay.NewEvent(relay.EventPresenceUpdate, "", u)
	n := h.Broadcast(u.Scope, ev)
	h.log.Debug("presence broadcast", "scope", u.Scope, "version", u.Version, "recipients", n)
}

func (h *Hub) sendAll(members []*client, ev relay.Event) int {
	if len(members) == 0 {
		return 0
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("event marshal failed", "event", ev.Type, "err", err)
		return 0
	}
	n := 0
	for _, c := range members {
		if err := c.enqueue(b); err != nil {
			h.log.Debug("send skipped", "connection_id", c.id, "event", ev.Type, "err", err)
			continue
		}
		n++
	}
	return n
}

// Count reports live connections in scope.
func (h *Hub) Count(scope presence.Scope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.conns {
		if c.scope == scope {
			n++
		}
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}
