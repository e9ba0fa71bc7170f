package auth

import "errors"

// Sentinel errors returned by the token codec and session manager. The API
// boundary maps them onto HTTP statuses; none of them carry detail that would
// let a client distinguish a bad signature from an expired or rotated token.
var (
	// ErrInvalidCredentials is returned when the supplied password does not
	// match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when no user matches the supplied login handle.
	ErrNotFound = errors.New("user not found")

	// ErrUnauthenticated is returned when no token was presented, or when a
	// verified token no longer resolves to an existing user.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidToken covers bad signature, expiry, and refresh-token
	// mismatch after rotation.
	ErrInvalidToken = errors.New("invalid or expired token")
)
