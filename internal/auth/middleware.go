package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// tokenQueryParam carries the access token for websocket upgrades; browsers cannot set headers there.
const tokenQueryParam = "token"

// IdentityVerifier resolves an opaque credential to a verified identity.
type IdentityVerifier interface {
	VerifyIdentity(token string) (Identity, error)
}

// TokenFromRequest extracts a bearer token from the Authorization header, or the token query parameter.
func TokenFromRequest(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
}

// RequireAccessToken verifies an access token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(v IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := TokenFromRequest(c.Request)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		id, err := v.VerifyIdentity(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), id.UserID, id.Role)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", id.UserID)
		c.Set("role", id.Role)

		c.Next()
	}
}
