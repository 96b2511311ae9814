package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"callguard/internal/calls"
	"callguard/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// REST mirror of the websocket call commands. The acting user is always the token subject.

type inviteRequest struct {
	CalleeID  string `json:"callee_id"`
	SessionID string `json:"session_id"`
}

// Invite returns 201 for a new session and 200 for a duplicate or a quota rejection.
func (h Handlers) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := h.Calls.Invite(c.Request.Context(), currentUser(c), req.CalleeID, req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate || res.LimitExceeded {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// Accept answers 200 with limitExceeded=true when the pair is past the grace margin.
func (h Handlers) Accept(c *gin.Context) {
	res, err := h.Calls.Accept(c.Request.Context(), c.Param("session_id"), currentUser(c))
	if err != nil && !errors.Is(err, calls.ErrQuotaExceeded) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) Reject(c *gin.Context) {
	s, err := h.Calls.Reject(c.Request.Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) Cancel(c *gin.Context) {
	s, err := h.Calls.Cancel(c.Request.Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type endRequest struct {
	ClientSeconds *int64 `json:"client_seconds"`
}

func (h Handlers) End(c *gin.Context) {
	var req endRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	res, err := h.Calls.End(c.Request.Context(), c.Param("session_id"), currentUser(c), req.ClientSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type signalRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (h Handlers) Signal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := h.Calls.Signal(c.Request.Context(), c.Param("session_id"), currentUser(c), relay.EventType(req.Type), req.Data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": d.Delivered, "path": d.Path})
}

func (h Handlers) PendingInvites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"invites": h.Calls.PendingInvites(currentUser(c))})
}

func (h Handlers) GetSession(c *gin.Context) {
	s, ok := h.Calls.Session(c.Param("session_id"))
	if !ok || !s.IsParticipant(currentUser(c)) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}
