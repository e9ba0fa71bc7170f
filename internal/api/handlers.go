package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/models"
	"clipstream/internal/storage"
)

type Handler struct {
	Store               storage.Repository
	Sessions            *auth.SessionManager
	Media               storage.MediaStore
	SessionCookiePolicy SessionCookiePolicy
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager, media storage.MediaStore) *Handler {
	if media == nil {
		media = storage.NewMediaStore(storage.MediaConfig{})
	}
	return &Handler{Store: store, Sessions: sessions, Media: media}
}

// Health reports readiness of the backing store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForStorageError maps repository errors onto HTTP statuses. Plain
// validation errors fall through to 400; persistence failures are 500 and
// writeError keeps their detail out of the response body.
func statusForStorageError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newUserResponse(user models.User) userResponse {
	sanitized := user.Sanitized()
	return userResponse{
		ID:            sanitized.ID,
		Username:      sanitized.Username,
		Email:         sanitized.Email,
		FullName:      sanitized.FullName,
		AvatarURL:     sanitized.AvatarURL,
		CoverImageURL: sanitized.CoverImageURL,
		CreatedAt:     sanitized.CreatedAt,
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
