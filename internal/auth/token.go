package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects which secret and TTL a token is issued and verified
// against. Access and refresh tokens are never interchangeable because each
// kind is only ever checked with its own secret.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 240 * time.Hour
)

// TokenConfig carries the signing secrets and validity windows consumed by the
// codec. It is constructed once at process start and injected; the codec never
// reads the environment.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenCodec issues and verifies signed, expiring session tokens carrying a
// user identifier claim. It holds no mutable state and is safe for concurrent
// use.
type TokenCodec struct {
	cfg TokenConfig
	now func() time.Time
}

type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// NewTokenCodec validates the configuration and applies default TTLs. Both
// secrets are required so access tokens can never verify against the refresh
// secret or vice versa.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("access token secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &TokenCodec{cfg: cfg, now: time.Now}, nil
}

func (c *TokenCodec) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return c.cfg.RefreshSecret
	}
	return c.cfg.AccessSecret
}

func (c *TokenCodec) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

// Issue produces a signed token embedding the user identifier with an expiry
// derived from the kind's TTL.
func (c *TokenCodec) Issue(userID string, kind TokenKind) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}
	now := c.now()
	expiresAt := now.Add(c.ttl(kind))
	// jti keeps two pairs minted within the same second distinct, which the
	// rotation check depends on.
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry against the kind's secret and returns the
// embedded user identifier. Every failure collapses into ErrInvalidToken so
// callers cannot tell a forged token from an expired one.
func (c *TokenCodec) Verify(token string, kind TokenKind) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret(kind), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
