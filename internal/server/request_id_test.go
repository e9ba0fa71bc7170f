package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipstream/internal/observability/logging"
)

func TestRequestIDMiddlewareGeneratesIdentifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := logging.RequestIDFromContext(r.Context())
		if !ok {
			t.Fatal("expected request id in context")
		}
		seen = id
		if logging.LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected logger in context")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	requestIDMiddlewareWithGenerator(logger, func() string { return "generated-id" }, next).ServeHTTP(rec, req)

	if seen != "generated-id" {
		t.Fatalf("expected generated id, got %q", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "generated-id" {
		t.Fatalf("expected response header to echo id, got %q", got)
	}
}

func TestRequestIDMiddlewarePreservesIncomingIdentifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := logging.RequestIDFromContext(r.Context())
		if id != "client-supplied" {
			t.Fatalf("expected client id, got %q", id)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("X-Request-Id", "client-supplied")
	rec := httptest.NewRecorder()
	requestIDMiddleware(logger, next).ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied" {
		t.Fatalf("expected response header to echo client id, got %q", got)
	}
}

func TestNewRequestIDProducesUniqueValues(t *testing.T) {
	first := newRequestID()
	second := newRequestID()
	if first == "" || second == "" {
		t.Fatal("expected non-empty identifiers")
	}
	if first == second {
		t.Fatalf("expected distinct identifiers, got %q twice", first)
	}
}
