package httpapi

import (
	"net/http"
	"strconv"

	"callguard/internal/audit"
	"callguard/internal/auth"
	"callguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GetRemaining reports the caller's remaining time with peer_id this month.
func (h Handlers) GetRemaining(c *gin.Context) {
	rem, err := h.Quota.GetRemaining(c.Request.Context(), currentUser(c), c.Param("peer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rem)
}

// ListMyPairs lists the caller's pairs with nonzero usage this month.
func (h Handlers) ListMyPairs(c *gin.Context) {
	h.listPairs(c, currentUser(c))
}

// ListUserPairs is the support/admin view of another user's pairs.
func (h Handlers) ListUserPairs(c *gin.Context) {
	h.listPairs(c, c.Param("user_id"))
}

func (h Handlers) listPairs(c *gin.Context, userID string) {
	recs, err := h.Quota.ListPairsForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "limit_seconds": h.Quota.LimitSeconds(), "pairs": recs})
}

type resetRequest struct {
	UserA  string `json:"user_a"`
	UserB  string `json:"user_b"`
	Reason string `json:"reason"`
}

// AdminResetQuota zeroes a pair's current month and writes an audit event.
// RBAC: admin.
func (h Handlers) AdminResetQuota(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}

	ctx := c.Request.Context()
	before, err := h.Quota.GetRemaining(ctx, req.UserA, req.UserB)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.Quota.Reset(ctx, req.UserA, req.UserB)
	if err != nil {
		writeError(c, err)
		return
	}

	adminID, _ := auth.UserID(ctx)
	adminRole, _ := auth.Role(ctx)
	if h.Audit != nil {
		err := h.Audit.LogQuotaReset(ctx, audit.QuotaReset{
			ActorUserID:      adminID,
			ActorRole:        adminRole,
			IPAddress:        ClientIPFromContext(ctx),
			PairKey:          rec.PairKey,
			MonthKey:         rec.MonthKey,
			PreviousUsedSecs: before.TotalUsedSeconds,
			Reason:           req.Reason,
		})
		if err != nil {
			logger.FromGin(c).Error("quota reset audit failed", "pair", rec.PairKey, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"usage": rec, "previous_used_seconds": before.TotalUsedSeconds})
}

// ListAudit returns recent audit events. RBAC: support or admin.
func (h Handlers) ListAudit(c *gin.Context) {
	f := audit.Filter{
		Type:    audit.EventType(c.Query("type")),
		PairKey: c.Query("pair_key"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		f.Limit = n
	}
	events, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
