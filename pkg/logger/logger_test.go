package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNew_DebugOnlyInLocalEnvs(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug record to be dropped in production, got %q", buf.String())
	}

	NewWithWriter("local", &buf).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug record in local env")
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
	l := Discard()
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddleware_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("local", &buf)))
	r.GET("/x", func(c *gin.Context) {
		if FromGin(c) == nil {
			t.Errorf("expected request logger")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "rid-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"rid-1"`) {
		t.Fatalf("expected request_id in log line, got %q", buf.String())
	}
}
