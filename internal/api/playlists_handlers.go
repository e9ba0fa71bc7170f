package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/models"
	"clipstream/internal/storage"
)

type playlistResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	VideoIDs    []string `json:"videoIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func newPlaylistResponse(playlist models.Playlist) playlistResponse {
	videoIDs := playlist.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}
	return playlistResponse{
		ID:          playlist.ID,
		OwnerID:     playlist.OwnerID,
		Name:        playlist.Name,
		Description: playlist.Description,
		VideoIDs:    videoIDs,
		CreatedAt:   playlist.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   playlist.UpdatedAt.UTC().Format(timeFormat),
	}
}

// Playlists serves the authenticated user's playlist collection.
func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		playlists, err := h.Store.ListPlaylists(r.Context(), user.ID)
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		responses := make([]playlistResponse, 0, len(playlists))
		for _, playlist := range playlists {
			responses = append(responses, newPlaylistResponse(playlist))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
			return
		}
		playlist, err := h.Store.CreatePlaylist(r.Context(), user.ID, req.Name, req.Description)
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, newPlaylistResponse(playlist))
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// PlaylistByID routes a single playlist and its membership subresource.
func (h *Handler) PlaylistByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/playlists/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("playlist not found"))
		return
	}
	playlistID := segments[0]

	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	playlist, exists, err := h.Store.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !exists || playlist.OwnerID != user.ID {
		// Playlists are private; hide other users' playlists entirely.
		writeError(w, http.StatusNotFound, fmt.Errorf("playlist %s not found", playlistID))
		return
	}

	if len(segments) == 3 && segments[1] == "videos" {
		h.playlistMembership(w, r, playlistID, segments[2])
		return
	}
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, errors.New("playlist not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodPatch:
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
			return
		}
		if req.Name == nil && req.Description == nil {
			writeError(w, http.StatusBadRequest, errors.New("no fields to update"))
			return
		}
		updated, err := h.Store.UpdatePlaylist(r.Context(), playlistID, storage.PlaylistUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(updated))
	case http.MethodDelete:
		if err := h.Store.DeletePlaylist(r.Context(), playlistID); err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, "GET, PATCH, DELETE")
	}
}

func (h *Handler) playlistMembership(w http.ResponseWriter, r *http.Request, playlistID, videoID string) {
	var (
		playlist models.Playlist
		err      error
	)
	switch r.Method {
	case http.MethodPost:
		playlist, err = h.Store.AddPlaylistVideo(r.Context(), playlistID, videoID)
	case http.MethodDelete:
		playlist, err = h.Store.RemovePlaylistVideo(r.Context(), playlistID, videoID)
	default:
		methodNotAllowed(w, "POST, DELETE")
		return
	}
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
}
