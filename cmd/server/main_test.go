package main

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"clipstream/internal/api"
	"clipstream/internal/storage"
)

func TestResolveCookiePolicy(t *testing.T) {
	policy, err := resolveCookiePolicy("")
	if err != nil {
		t.Fatalf("resolveCookiePolicy returned error: %v", err)
	}
	if policy.SecureMode != api.SessionCookieSecureAuto {
		t.Fatalf("expected auto secure mode by default, got %v", policy.SecureMode)
	}
	if policy.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite strict, got %v", policy.SameSite)
	}

	policy, err = resolveCookiePolicy("ALWAYS")
	if err != nil {
		t.Fatalf("resolveCookiePolicy returned error: %v", err)
	}
	if policy.SecureMode != api.SessionCookieSecureAlways {
		t.Fatalf("expected always secure mode, got %v", policy.SecureMode)
	}

	if _, err := resolveCookiePolicy("sometimes"); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestResolveCredentialStoreDefaultsToDatastore(t *testing.T) {
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}

	credentials, closer, err := resolveCredentialStore("", "", store)
	if err != nil {
		t.Fatalf("resolveCredentialStore returned error: %v", err)
	}
	if credentials != store {
		t.Fatal("expected the JSON datastore to back credentials by default")
	}
	if closer != nil {
		t.Fatal("expected no closer for the shared datastore")
	}

	if _, _, err := resolveCredentialStore("postgres", "", store); err == nil {
		t.Fatal("expected error for postgres driver without DSN")
	}
	if _, _, err := resolveCredentialStore("sqlite", "", store); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestResolveDataPath(t *testing.T) {
	if got := resolveDataPath(" /tmp/a.json ", "/tmp/b.json"); got != "/tmp/a.json" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveDataPath("", "/tmp/b.json"); got != "/tmp/b.json" {
		t.Fatalf("expected env fallback, got %q", got)
	}
	if got := resolveDataPath("", ""); got != "data/store.json" {
		t.Fatalf("expected default path, got %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example.com , ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected result: %#v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatal("expected nil for blank input")
	}
}

func TestResolveDurationPrecedence(t *testing.T) {
	if got := resolveDuration(2*time.Second, "CLIPSTREAM_TEST_DURATION", time.Minute); got != 2*time.Second {
		t.Fatalf("expected flag value, got %v", got)
	}
	t.Setenv("CLIPSTREAM_TEST_DURATION", "30s")
	if got := resolveDuration(0, "CLIPSTREAM_TEST_DURATION", time.Minute); got != 30*time.Second {
		t.Fatalf("expected env value, got %v", got)
	}
	t.Setenv("CLIPSTREAM_TEST_DURATION", "not-a-duration")
	if got := resolveDuration(0, "CLIPSTREAM_TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
}
