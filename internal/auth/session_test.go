package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipstream/internal/models"
)

func newTestManager(t *testing.T) (*SessionManager, *MemoryCredentialStore) {
	t.Helper()
	store := NewMemoryCredentialStore()
	manager := NewSessionManager(store, newTestCodec(t))
	return manager, store
}

func seedUser(t *testing.T, store *MemoryCredentialStore, username, email, password string) models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	user := models.User{
		ID:           "user-" + username,
		Username:     username,
		Email:        email,
		FullName:     "Test " + username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	store.PutUser(user)
	return user
}

func TestLoginIssuesVerifiablePair(t *testing.T) {
	manager, store := newTestManager(t)
	alice := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	for _, login := range []string{"alice", "alice@example.com", "ALICE"} {
		user, pair, err := manager.Login(context.Background(), login, "correct horse")
		if err != nil {
			t.Fatalf("Login(%q) returned error: %v", login, err)
		}
		if user.ID != alice.ID {
			t.Fatalf("expected user %s, got %s", alice.ID, user.ID)
		}
		if user.PasswordHash != "" || user.RefreshToken != "" {
			t.Fatal("expected sanitized user")
		}
		accessID, err := manager.codec.Verify(pair.AccessToken, AccessToken)
		if err != nil {
			t.Fatalf("access token failed verification: %v", err)
		}
		refreshID, err := manager.codec.Verify(pair.RefreshToken, RefreshToken)
		if err != nil {
			t.Fatalf("refresh token failed verification: %v", err)
		}
		if accessID != alice.ID || refreshID != alice.ID {
			t.Fatalf("expected both tokens for %s, got %s and %s", alice.ID, accessID, refreshID)
		}
		stored, _, _ := store.GetUser(context.Background(), alice.ID)
		if stored.RefreshToken != pair.RefreshToken {
			t.Fatal("expected refresh token persisted on the user record")
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "alice", "alice@example.com", "correct horse")

	if _, _, err := manager.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := manager.Login(context.Background(), "nobody", "whatever"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshRotatesAndRejectsStaleToken(t *testing.T) {
	manager, store := newTestManager(t)
	alice := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	_, first, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	user, second, err := manager.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh returned error: %v", err)
	}
	if user.ID != alice.ID {
		t.Fatalf("expected user %s, got %s", alice.ID, user.ID)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected rotation to mint a new refresh token")
	}

	// The superseded token still carries a valid signature but no longer
	// matches the stored value.
	if _, _, err := manager.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for superseded token, got %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("expected current token to refresh, got %v", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	store := NewMemoryCredentialStore()
	codec := newTestCodec(t)
	manager := NewSessionManager(store, codec)
	alice := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	codec.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	expired, _, err := codec.Issue(alice.ID, RefreshToken)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	codec.now = time.Now
	if err := store.SetRefreshToken(context.Background(), alice.ID, expired); err != nil {
		t.Fatalf("SetRefreshToken returned error: %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestRefreshRequiresPresentedToken(t *testing.T) {
	manager, _ := newTestManager(t)
	if _, _, err := manager.Refresh(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	manager, store := newTestManager(t)
	alice := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := manager.Logout(context.Background(), alice.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}

	// Outstanding access tokens are not server-revocable; they remain valid
	// until natural expiry.
	if _, err := manager.Identify(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("expected access token to survive logout, got %v", err)
	}
}

func TestIdentify(t *testing.T) {
	manager, store := newTestManager(t)
	alice := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	user, err := manager.Identify(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
	if user.ID != alice.ID {
		t.Fatalf("expected user %s, got %s", alice.ID, user.ID)
	}
	if user.PasswordHash != "" || user.RefreshToken != "" {
		t.Fatal("expected sanitized user from Identify")
	}

	if _, err := manager.Identify(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing token, got %v", err)
	}
	if _, err := manager.Identify(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh token at the gate, got %v", err)
	}

	store.DeleteUser(alice.ID)
	if _, err := manager.Identify(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for deleted user, got %v", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("supersecret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if err := VerifyPassword(hash, "supersecret"); err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if err := VerifyPassword(hash, "not it"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
