package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callguard/internal/audit"
	"callguard/internal/auth"
	"callguard/internal/calls"
	"callguard/internal/presence"
	"callguard/internal/quota"
	"callguard/internal/rbac"
	"callguard/internal/reporting"
	"callguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Quota     *quota.Service
	Calls     *calls.Controller
	Presence  *presence.Registry
	Reporting *reporting.Service
	Audit     *audit.Service

	// Location is the ledger's month boundary zone, used for month-to-date summaries.
	Location *time.Location
	// DevTokens exposes POST /v1/auth/token. Never enabled in production.
	DevTokens bool
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueDevToken issues a JWT pair for any user id. Credentials are not checked.
func (h Handlers) IssueDevToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleMember
	}
	if req.UserID == "" || !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a known role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Presence ---

func (h Handlers) ListOnline(c *gin.Context) {
	scope := presence.Scope(c.DefaultQuery("scope", string(presence.ScopeGeneral)))
	if !scope.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "scope must be general or signaling"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope, "online": h.Presence.ListOnline(scope)})
}

// --- Reporting ---

func (h Handlers) CallsSummary(c *gin.Context) {
	userID := currentUser(c)
	rng := reporting.MonthToDate(time.Now(), h.Location)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		rng.To = t
	}

	sum, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{UserID: userID, Range: rng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- helpers ---

func currentUser(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, quota.ErrInvalidArgument),
		errors.Is(err, presence.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, calls.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, calls.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, calls.ErrSessionExists), errors.Is(err, calls.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, quota.ErrLedgerUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
