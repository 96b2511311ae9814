package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"callguard/internal/auth"
	"callguard/internal/calls"
	"callguard/internal/presence"
	"callguard/internal/relay"
	"callguard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Calls is the controller surface reachable from a socket.
type Calls interface {
	Invite(ctx context.Context, callerID, calleeID, sessionID string) (calls.InviteResult, error)
	Accept(ctx context.Context, sessionID, accepterID string) (calls.AcceptResult, error)
	Reject(ctx context.Context, sessionID, byUserID string) (calls.Session, error)
	Cancel(ctx context.Context, sessionID, byUserID string) (calls.Session, error)
	End(ctx context.Context, sessionID, endedBy string, clientSeconds *int64) (calls.EndResult, error)
	Signal(ctx context.Context, sessionID, fromUserID string, kind relay.EventType, payload json.RawMessage) (relay.Delivery, error)
	RedeliverPending(ctx context.Context, userID string) int
}

type Options struct {
	// AllowedOrigins restricts browser upgrades. Empty allows any origin.
	AllowedOrigins  []string
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	SendBuffer      int
}

func (o Options) withDefaults() Options {
	out := o
	if out.PongWait <= 0 {
		out.PongWait = 60 * time.Second
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.PongWait {
		out.PingInterval = out.PongWait * 9 / 10
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.MaxMessageBytes <= 0 {
		out.MaxMessageBytes = 64 << 10
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = 64
	}
	return out
}

type Handler struct {
	hub      *Hub
	registry *presence.Registry
	verifier auth.IdentityVerifier
	calls    Calls
	opts     Options
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHandler(hub *Hub, registry *presence.Registry, verifier auth.IdentityVerifier, c Calls, opts Options, log *slog.Logger) *Handler {
	opts = opts.withDefaults()
	h := &Handler{
		hub:      hub,
		registry: registry,
		verifier: verifier,
		calls:    c,
		opts:     opts,
		log:      logger.Component(log, "gateway"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades an authenticated request into a connection of the given scope.
// The identity is resolved before the upgrade; the socket trusts it afterwards.
func (h *Handler) ServeWS(scope presence.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := auth.TokenFromRequest(c.Request)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := h.verifier.VerifyIdentity(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			h.log.Warn("websocket upgrade failed", "scope", scope, "user_id", id.UserID, "err", err)
			return
		}

		connID := uuid.NewString()
		cl := &client{
			id:     connID,
			userID: id.UserID,
			role:   id.Role,
			scope:  scope,
			conn:   conn,
			send:   make(chan []byte, h.opts.SendBuffer),
			done:   make(chan struct{}),
			opts:   h.opts,
			log:    h.log.With("connection_id", connID, "user_id", id.UserID, "scope", scope),
		}
		h.serve(c.Request.Context(), cl)
	}
}

func (h *Handler) serve(ctx context.Context, cl *client) {
	h.hub.register(cl)
	if err := h.registry.Join(cl.userID, cl.scope, cl.id); err != nil {
		cl.log.Error("presence join failed", "err", err)
		h.hub.unregister(cl)
		cl.close()
		return
	}
	cl.log.Info("connected")

	defer func() {
		h.registry.Leave(cl.id)
		h.hub.unregister(cl)
		cl.close()
		cl.log.Info("disconnected")
	}()

	go cl.writePump()

	if cl.scope == presence.ScopeGeneral {
		if n := h.calls.RedeliverPending(ctx, cl.userID); n > 0 {
			cl.log.Info("pending invites redelivered", "count", n)
		}
	}

	cl.readPump(func(m inbound) { h.dispatch(ctx, cl, m) })
}
