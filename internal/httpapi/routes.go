package httpapi

import (
	"callguard/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the /v1 API. authMW resolves the caller identity.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(ClientIP())

	if h.DevTokens && h.Auth != nil {
		v1.POST("/auth/token", h.IssueDevToken)
	}

	p := v1.Group("")
	p.Use(authMW)
	{
		p.GET("/me", h.Me)
		p.GET("/presence/online", h.ListOnline)

		p.GET("/quota", h.ListMyPairs)
		p.GET("/quota/:peer_id", h.GetRemaining)

		c := p.Group("/calls")
		c.GET("/pending", h.PendingInvites)
		c.GET("/summary", h.CallsSummary)
		c.POST("/invite", h.Invite)
		c.GET("/:session_id", h.GetSession)
		c.POST("/:session_id/accept", h.Accept)
		c.POST("/:session_id/reject", h.Reject)
		c.POST("/:session_id/cancel", h.Cancel)
		c.POST("/:session_id/end", h.End)
		c.POST("/:session_id/signal", h.Signal)

		admin := p.Group("/admin")
		admin.GET("/quota/users/:user_id", rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleAdmin), h.ListUserPairs)
		admin.POST("/quota/reset", rbac.RequireAnyRole(rbac.RoleAdmin), h.AdminResetQuota)
		admin.GET("/audit", rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleAdmin), h.ListAudit)
	}
}
