package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mjarkko/scripter/internal/requestid"
	"github.com/mjarkko/scripter/internal/webhook/middleware"
)

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	for _, h := range handlers {
		r.Use(h)
	}
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, requestid.FromContext(c.Request.Context()))
	})
	return r
}

func TestRequestID_GeneratesWhenHeaderAbsent(t *testing.T) {
	r := newTestRouter(middleware.RequestID())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	header := rec.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatalf("expected X-Request-ID response header to be set")
	}
	if rec.Body.String() != header {
		t.Fatalf("handler saw request id %q, response header was %q", rec.Body.String(), header)
	}
}

func TestRequestID_PreservesIncomingHeader(t *testing.T) {
	r := newTestRouter(middleware.RequestID())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "client-supplied-id" {
		t.Fatalf("expected the incoming request id to be preserved, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestSecurity_SetsHeaders(t *testing.T) {
	r := newTestRouter(middleware.Security())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	checks := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMetrics_DoesNotPanicAndPassesRequestThrough(t *testing.T) {
	r := newTestRouter(middleware.Metrics())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
