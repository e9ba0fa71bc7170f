package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/models"
)

type commentResponse struct {
	ID             string `json:"id"`
	VideoID        string `json:"videoId"`
	AuthorID       string `json:"authorId"`
	AuthorUsername string `json:"authorUsername,omitempty"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func (h *Handler) newCommentResponse(r *http.Request, comment models.Comment) commentResponse {
	resp := commentResponse{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: comment.UpdatedAt.UTC().Format(timeFormat),
	}
	if author, ok, err := h.Store.GetUser(r.Context(), comment.AuthorID); err == nil && ok {
		resp.AuthorUsername = author.Username
	}
	return resp
}

// videoComments lists or appends comments under a video.
func (h *Handler) videoComments(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, ok := h.visibleVideo(w, r, videoID); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		comments, err := h.Store.ListComments(r.Context(), videoID)
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		responses := make([]commentResponse, 0, len(comments))
		for _, comment := range comments {
			responses = append(responses, h.newCommentResponse(r, comment))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
			return
		}
		comment, err := h.Store.CreateComment(r.Context(), videoID, user.ID, req.Content)
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, h.newCommentResponse(r, comment))
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// CommentByID edits or deletes a single comment. Comments can be edited only
// by their author; deletion is also open to the owner of the video.
func (h *Handler) CommentByID(w http.ResponseWriter, r *http.Request) {
	commentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/comments/"), "/")
	if commentID == "" || strings.Contains(commentID, "/") {
		writeError(w, http.StatusNotFound, errors.New("comment not found"))
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	comment, exists, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment %s not found", commentID))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		if comment.AuthorID != user.ID {
			writeError(w, http.StatusForbidden, errors.New("forbidden"))
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
			return
		}
		updated, err := h.Store.UpdateComment(r.Context(), commentID, req.Content)
		if err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, h.newCommentResponse(r, updated))
	case http.MethodDelete:
		if comment.AuthorID != user.ID {
			video, ok, err := h.Store.GetVideo(r.Context(), comment.VideoID)
			if err != nil || !ok || video.OwnerID != user.ID {
				writeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}
		}
		if err := h.Store.DeleteComment(r.Context(), commentID); err != nil {
			writeError(w, statusForStorageError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, "PATCH, DELETE")
	}
}
