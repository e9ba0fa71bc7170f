package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/auth"
	"clipstream/internal/storage"
)

type sessionResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Register creates an account from a multipart form carrying the profile
// fields plus optional avatar and coverImage files.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	form, err := readMultipartForm(r, map[string]int64{
		"avatar":     maxImageUploadBytes,
		"coverImage": maxImageUploadBytes,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := storage.CreateUserParams{
		Username: form.field("username"),
		Email:    form.field("email"),
		FullName: form.field("fullName"),
		Password: form.fields["password"],
	}
	if params.Username == "" || params.Email == "" || params.FullName == "" || params.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username, email, fullName, and password are required"))
		return
	}

	avatarURL, err := h.storeUpload(r.Context(), "avatars/", form.files["avatar"])
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	coverURL, err := h.storeUpload(r.Context(), "covers/", form.files["coverImage"])
	if err != nil {
		h.removeUpload(r.Context(), avatarURL)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	params.AvatarURL = avatarURL
	params.CoverImageURL = coverURL

	user, err := h.Store.CreateUser(r.Context(), params)
	if err != nil {
		h.removeUpload(r.Context(), avatarURL)
		h.removeUpload(r.Context(), coverURL)
		writeError(w, statusForStorageError(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// Login checks credentials and issues a fresh token pair. Unknown accounts
// and wrong passwords produce the same response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
		return
	}

	user, pair, err := h.Sessions.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		if status := StatusForAuthError(err); status == http.StatusUnauthorized {
			writeError(w, status, auth.ErrInvalidCredentials)
			return
		}
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         newUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the refresh token and issues a new pair. The presented
// token comes from the refreshToken cookie, with a JSON body fallback for
// non-browser clients.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	presented := ExtractRefreshToken(r)
	if presented == "" && r.Body != nil {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	user, pair, err := h.Sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.ClearSessionCookies(w, r)
		writeAuthError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         newUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout clears the stored refresh token and expires both cookies. The access
// token remains cryptographically valid until it expires; revocation is only
// tracked for refresh tokens.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.Logout(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	h.ClearSessionCookies(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword verifies the current password before replacing it.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
		return
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		writeError(w, http.StatusBadRequest, errors.New("newPassword is required"))
		return
	}

	stored, ok2, err := h.Store.GetUser(r.Context(), user.ID)
	if err != nil || !ok2 {
		writeError(w, http.StatusUnauthorized, auth.ErrUnauthenticated)
		return
	}
	if err := auth.VerifyPassword(stored.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
		return
	}
	if _, err := h.Store.SetUserPassword(r.Context(), user.ID, req.NewPassword); err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type updateDetailsRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

// UpdateDetails applies partial profile changes.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, "PATCH")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req updateDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
		return
	}
	if req.FullName == nil && req.Email == nil {
		writeError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}
	updated, err := h.Store.UpdateUserDetails(r.Context(), user.ID, storage.UserUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

// UpdateAvatar replaces the authenticated user's avatar image.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars/", func(url string) storage.ImageUpdate {
		return storage.ImageUpdate{AvatarURL: &url}
	})
}

// UpdateCover replaces the authenticated user's cover image.
func (h *Handler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers/", func(url string) storage.ImageUpdate {
		return storage.ImageUpdate{CoverImageURL: &url}
	})
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request, field, keyPrefix string, update func(url string) storage.ImageUpdate) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, "PATCH")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	form, err := readMultipartForm(r, map[string]int64{field: maxImageUploadBytes})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file := form.files[field]
	if file == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s file is required", field))
		return
	}
	url, err := h.storeUpload(r.Context(), keyPrefix, file)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	updated, err := h.Store.SetUserImages(r.Context(), user.ID, update(url))
	if err != nil {
		h.removeUpload(r.Context(), url)
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

type watchHistoryEntry struct {
	Video     videoResponse `json:"video"`
	WatchedAt string        `json:"watchedAt"`
}

// History returns the authenticated user's watch history, most recent first.
// Entries whose videos were deleted are dropped.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	events, err := h.Store.WatchHistory(r.Context(), user.ID)
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	entries := make([]watchHistoryEntry, 0, len(events))
	for _, event := range events {
		video, exists, err := h.Store.GetVideo(r.Context(), event.VideoID)
		if err != nil || !exists {
			continue
		}
		entries = append(entries, watchHistoryEntry{
			Video:     h.newVideoResponse(r, video),
			WatchedAt: event.WatchedAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// Subscriptions lists the channels the authenticated user follows, most
// recently subscribed first.
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	channelIDs := h.Store.ListSubscribedChannelIDs(r.Context(), user.ID)
	channels := make([]channelResponse, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		channel, exists, err := h.Store.GetUser(r.Context(), channelID)
		if err != nil || !exists {
			continue
		}
		videos, err := h.Store.ListVideos(r.Context(), channel.ID, "", false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}
		channels = append(channels, channelResponse{
			User:            newUserResponse(channel),
			SubscriberCount: h.Store.CountSubscribers(r.Context(), channel.ID),
			VideoCount:      len(videos),
			Subscribed:      true,
		})
	}
	writeJSON(w, http.StatusOK, channels)
}

type channelResponse struct {
	User            userResponse `json:"user"`
	SubscriberCount int          `json:"subscriberCount"`
	VideoCount      int          `json:"videoCount"`
	Subscribed      bool         `json:"subscribed"`
}

// ChannelByUsername serves public channel profiles and the subscribe and
// unsubscribe actions nested under them.
func (h *Handler) ChannelByUsername(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/channels/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("channel not found"))
		return
	}
	username := segments[0]

	if len(segments) == 2 && segments[1] == "subscribe" {
		h.handleSubscription(w, r, username)
		return
	}
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, errors.New("channel not found"))
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	channel, exists, err := h.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", username))
		return
	}

	videos, err := h.Store.ListVideos(r.Context(), channel.ID, "", false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	resp := channelResponse{
		User:            newUserResponse(channel),
		SubscriberCount: h.Store.CountSubscribers(r.Context(), channel.ID),
		VideoCount:      len(videos),
	}
	if viewer, ok := UserFromContext(r.Context()); ok {
		resp.Subscribed = h.Store.IsSubscribed(r.Context(), viewer.ID, channel.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request, username string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	channel, exists, err := h.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", username))
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := h.Store.Subscribe(r.Context(), user.ID, channel.ID); err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
	case http.MethodDelete:
		if err := h.Store.Unsubscribe(r.Context(), user.ID, channel.ID); err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
	default:
		methodNotAllowed(w, "POST, DELETE")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscriberCount": h.Store.CountSubscribers(r.Context(), channel.ID),
		"subscribed":      h.Store.IsSubscribed(r.Context(), user.ID, channel.ID),
	})
}
