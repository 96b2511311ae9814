package main

import (
	"context"
	"net/http"
	"time"

	"callguard/internal/audit"
	"callguard/internal/auth"
	"callguard/internal/calls"
	"callguard/internal/gateway"
	"callguard/internal/httpapi"
	"callguard/internal/presence"
	"callguard/internal/quota"
	"callguard/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	auth       *auth.Manager
	ledger     *quota.Service
	controller *calls.Controller
	registry   *presence.Registry
	history    *reporting.Service
	audit      *audit.Service
	ws         *gateway.Handler
	location   *time.Location
	devTokens  bool
	ready      func(context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := d.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// websocket endpoints authenticate with ?token= or a bearer header
	r.GET("/ws/general", d.ws.ServeWS(presence.ScopeGeneral))
	r.GET("/ws/signaling", d.ws.ServeWS(presence.ScopeSignaling))

	h := httpapi.Handlers{
		Auth:      d.auth,
		Quota:     d.ledger,
		Calls:     d.controller,
		Presence:  d.registry,
		Reporting: d.history,
		Audit:     d.audit,
		Location:  d.location,
		DevTokens: d.devTokens,
	}
	h.Register(r, auth.RequireAccessToken(d.auth))
}
