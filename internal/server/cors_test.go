package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestCORSPolicy(t *testing.T, origins ...string) corsPolicy {
	t.Helper()
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigins: origins})
	if err != nil {
		t.Fatalf("newCORSPolicy returned error: %v", err)
	}
	return policy
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	policy := newTestCORSPolicy(t, "https://app.example.com")
	handler := corsMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allow-origin echo, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected allow-credentials true, got %q", got)
	}
}

func TestCORSBlocksUnknownOrigin(t *testing.T) {
	policy := newTestCORSPolicy(t, "https://app.example.com")
	handler := corsMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected call to next handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no allow-origin header for blocked origin")
	}
}

func TestCORSAllowsSameOriginRequests(t *testing.T) {
	policy := newTestCORSPolicy(t)
	nextCalled := false
	handler := corsMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "http://clipstream.local/api/videos", nil)
	req.Host = "clipstream.local"
	req.Header.Set("Origin", "http://clipstream.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected same-origin request to pass")
	}
}

func TestCORSPreflight(t *testing.T) {
	policy := newTestCORSPolicy(t, "https://app.example.com")
	handler := corsMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("expected allow-methods header on preflight")
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("expected requested headers echoed, got %q", got)
	}
}

func TestNormalizeOriginLowercasesSchemeAndHost(t *testing.T) {
	normalized, err := normalizeOrigin("HTTPS://App.Example.COM")
	if err != nil {
		t.Fatalf("normalizeOrigin returned error: %v", err)
	}
	if normalized != "https://app.example.com" {
		t.Fatalf("expected normalized origin, got %q", normalized)
	}

	if _, err := normalizeOrigin("app.example.com"); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
}
