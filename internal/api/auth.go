package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clipstream/internal/auth"
	"clipstream/internal/models"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// AuthenticateRequest verifies the access token on the request and resolves
// the user. The returned user is sanitized.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, error) {
	return h.Sessions.Identify(r.Context(), ExtractAccessToken(r))
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, auth.ErrUnauthenticated)
		return models.User{}, false
	}
	return user, true
}

// StatusForAuthError maps session-manager errors onto HTTP statuses. Every
// credential or token failure collapses to 401 so responses do not reveal
// whether an account exists or why a token was rejected.
func StatusForAuthError(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := StatusForAuthError(err)
	if status == http.StatusUnauthorized {
		// Collapse the reason so the response is the same for a missing
		// account, a bad password, and a rejected token.
		writeError(w, status, auth.ErrUnauthenticated)
		return
	}
	writeError(w, status, errors.New("internal error"))
}

// ExtractAccessToken pulls the access token from the accessToken cookie or
// the Authorization bearer header, in that order.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// ExtractRefreshToken pulls the refresh token from the refreshToken cookie.
// A body fallback is handled by the refresh endpoint itself.
func ExtractRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
