package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubVerifier struct {
	id  Identity
	err error
}

func (s stubVerifier) VerifyIdentity(token string) (Identity, error) {
	if token != "good" {
		return Identity{}, errors.New("bad token")
	}
	return s.id, s.err
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", RequireAccessToken(stubVerifier{id: Identity{UserID: "u1", Role: "member"}}), func(c *gin.Context) {
		uid, err := UserID(c.Request.Context())
		if err != nil || uid != "u1" {
			t.Errorf("expected identity in context, got %q %v", uid, err)
		}
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"query", func(r *http.Request) { q := r.URL.Query(); q.Set("token", "good"); r.URL.RawQuery = q.Encode() }, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			tc.setup(req)
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
		})
	}
}
