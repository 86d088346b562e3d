package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandlerReflectsFlag(t *testing.T) {
	healthy := true
	h := NewHealthHandler(func() bool { return healthy })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.CheckHealth(w, req)
	if code := w.Result().StatusCode; code != http.StatusOK {
		t.Fatalf("healthy: status = %d", code)
	}

	healthy = false
	w = httptest.NewRecorder()
	h.CheckHealth(w, req)
	if code := w.Result().StatusCode; code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: status = %d", code)
	}
}
