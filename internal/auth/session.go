package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipstream/internal/models"
)

// CredentialStore defines the persistence contract the session manager needs:
// user lookup plus read-then-overwrite of the single stored refresh token.
type CredentialStore interface {
	FindUserByLogin(ctx context.Context, usernameOrEmail string) (models.User, bool, error)
	GetUser(ctx context.Context, id string) (models.User, bool, error)
	SetRefreshToken(ctx context.Context, id, token string) error
}

// TokenPair is the access/refresh pair delivered to the client on login and
// refresh. The refresh token is also the value persisted on the user record.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SessionManager issues token pairs on login, rotates them on refresh, and
// revokes them on logout. The credential store is the only shared mutable
// resource it touches; overwrites of the stored refresh token are
// last-writer-wins, so two concurrent refreshes with the same stale token can
// both succeed before either write lands. That race is accepted for this
// domain.
type SessionManager struct {
	store CredentialStore
	codec *TokenCodec
}

// NewSessionManager wires a session manager to its credential store and codec.
func NewSessionManager(store CredentialStore, codec *TokenCodec) *SessionManager {
	return &SessionManager{store: store, codec: codec}
}

func (m *SessionManager) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	access, accessExpiry, err := m.codec.Issue(userID, AccessToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExpiry, err := m.codec.Issue(userID, RefreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := m.store.SetRefreshToken(ctx, userID, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Login authenticates the supplied credentials and issues a fresh token pair,
// overwriting any previously stored refresh token. The returned user is
// sanitized.
func (m *SessionManager) Login(ctx context.Context, usernameOrEmail, password string) (models.User, TokenPair, error) {
	if password == "" {
		return models.User{}, TokenPair{}, ErrInvalidCredentials
	}
	user, ok, err := m.store.FindUserByLogin(ctx, usernameOrEmail)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return models.User{}, TokenPair{}, ErrNotFound
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return models.User{}, TokenPair{}, err
	}
	pair, err := m.issuePair(ctx, user.ID)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return user.Sanitized(), pair, nil
}

// Refresh verifies the presented refresh token, compares it against the single
// stored value, and rotates the pair on match. A signature-valid token that no
// longer matches the stored value has been superseded or revoked and is
// rejected with ErrInvalidToken.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (models.User, TokenPair, error) {
	if presented == "" {
		return models.User{}, TokenPair{}, ErrUnauthenticated
	}
	userID, err := m.codec.Verify(presented, RefreshToken)
	if err != nil {
		return models.User{}, TokenPair{}, ErrInvalidToken
	}
	user, ok, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return models.User{}, TokenPair{}, ErrUnauthenticated
	}
	if user.RefreshToken == "" || user.RefreshToken != presented {
		return models.User{}, TokenPair{}, ErrInvalidToken
	}
	pair, err := m.issuePair(ctx, user.ID)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return user.Sanitized(), pair, nil
}

// Logout clears the stored refresh token, invalidating every future refresh
// attempt until the next login. Outstanding access tokens keep working until
// they expire; access tokens are not server-revocable.
func (m *SessionManager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := m.store.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Identify resolves an access token to its sanitized user for the request
// gate. It never mutates persisted state.
func (m *SessionManager) Identify(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, ErrUnauthenticated
	}
	userID, err := m.codec.Verify(accessToken, AccessToken)
	if err != nil {
		return models.User{}, ErrInvalidToken
	}
	user, ok, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return models.User{}, ErrUnauthenticated
	}
	return user.Sanitized(), nil
}
