package relay

import (
	"context"
	"log/slog"

	"callguard/internal/presence"
	"callguard/pkg/logger"
	"callguard/pkg/metrics"
)

// Path names how an event reached (or failed to reach) its target.
type Path string

const (
	PathDirect    Path = "direct"
	PathGroup     Path = "group"
	PathBroadcast Path = "broadcast"
	PathNone      Path = "none"
)

// UserGroup is the broadcast group every connection of a user joins.
func UserGroup(userID string) string { return "user:" + userID }

// Transport is the wire side of the relay. Sends to stale connections return an error
// or zero recipients; they never panic.
type Transport interface {
	SendToConnection(connectionID string, ev Event) error
	SendToGroup(scope presence.Scope, group string, ev Event) int
	Broadcast(scope presence.Scope, ev Event) int
}

// Resolver finds the authoritative connection of a user.
type Resolver interface {
	Resolve(userID string, scope presence.Scope) (string, bool)
}

// Delivery reports the outcome of one Deliver or Fanout call.
type Delivery struct {
	Delivered bool
	Path      Path
	Degraded  bool
	Sent      int
}

type Options struct {
	// BroadcastFallback enables the last-resort unfiltered broadcast for establishment events.
	BroadcastFallback bool
}

type Relay struct {
	resolver  Resolver
	transport Transport
	opts      Options
	log       *slog.Logger
}

func New(resolver Resolver, transport Transport, opts Options, log *slog.Logger) *Relay {
	return &Relay{
		resolver:  resolver,
		transport: transport,
		opts:      opts,
		log:       logger.Component(log, "relay"),
	}
}

// Deliver routes ev to target: direct connection first, then the user group,
// then (establishment events only, when enabled) a degraded scope broadcast.
// An unreachable target is not an error.
func (r *Relay) Deliver(ctx context.Context, ev Event, target string, scope presence.Scope) Delivery {
	ev.To = target

	if conn, ok := r.resolver.Resolve(target, scope); ok {
		err := r.transport.SendToConnection(conn, ev)
		if err == nil {
			return r.record(ev, Delivery{Delivered: true, Path: PathDirect, Sent: 1})
		}
		r.log.Debug("direct send failed", "connection_id", conn, "event", ev.Type, "err", err)
	}

	if n := r.transport.SendToGroup(scope, UserGroup(target), ev); n > 0 {
		return r.record(ev, Delivery{Delivered: true, Path: PathGroup, Sent: n})
	}

	if r.opts.BroadcastFallback && ev.Type.Establishment() {
		n := r.transport.Broadcast(scope, ev)
		metrics.DegradedEvents.WithLabelValues("broadcast_fallback").Inc()
		r.log.Warn("delivered via broadcast fallback", "event", ev.Type, "session_id", ev.SessionID, "target", target, "recipients", n)
		return r.record(ev, Delivery{Delivered: n > 0, Path: PathBroadcast, Degraded: true, Sent: n})
	}

	r.log.Debug("target unreachable", "event", ev.Type, "session_id", ev.SessionID, "target", target, "scope", scope)
	return r.record(ev, Delivery{Path: PathNone})
}

// Fanout sends ev to every resolvable connection of target: the direct connection
// and the user group. Receivers may see the same event id twice.
func (r *Relay) Fanout(ctx context.Context, ev Event, target string, scope presence.Scope) Delivery {
	ev.To = target
	out := Delivery{Path: PathNone}

	if conn, ok := r.resolver.Resolve(target, scope); ok {
		if err := r.transport.SendToConnection(conn, ev); err == nil {
			out.Delivered = true
			out.Path = PathDirect
			out.Sent++
		}
	}
	if n := r.transport.SendToGroup(scope, UserGroup(target), ev); n > 0 {
		if !out.Delivered {
			out.Path = PathGroup
		}
		out.Delivered = true
		out.Sent += n
	}

	if !out.Delivered && r.opts.BroadcastFallback && ev.Type.Establishment() {
		n := r.transport.Broadcast(scope, ev)
		metrics.DegradedEvents.WithLabelValues("broadcast_fallback").Inc()
		out = Delivery{Delivered: n > 0, Path: PathBroadcast, Degraded: true, Sent: n}
	}
	return r.record(ev, out)
}

// FanoutScopes runs Fanout on each scope and merges the outcome.
func (r *Relay) FanoutScopes(ctx context.Context, ev Event, target string, scopes ...presence.Scope) Delivery {
	out := Delivery{Path: PathNone}
	for _, s := range scopes {
		d := r.Fanout(ctx, ev, target, s)
		out.Sent += d.Sent
		out.Degraded = out.Degraded || d.Degraded
		if d.Delivered && !out.Delivered {
			out.Delivered = true
			out.Path = d.Path
		}
	}
	return out
}

func (r *Relay) record(ev Event, d Delivery) Delivery {
	metrics.Deliveries.WithLabelValues(string(d.Path), string(ev.Type)).Inc()
	return d
}
