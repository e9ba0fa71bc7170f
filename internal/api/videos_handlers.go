package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipstream/internal/models"
	"clipstream/internal/storage"
)

const timeFormat = time.RFC3339Nano

type videoResponse struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	DurationSecs int    `json:"durationSeconds"`
	Views        int64  `json:"views"`
	Published    bool   `json:"published"`
	LikeCount    int    `json:"likeCount"`
	Liked        bool   `json:"liked"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func (h *Handler) newVideoResponse(r *http.Request, video models.Video) videoResponse {
	resp := videoResponse{
		ID:           video.ID,
		OwnerID:      video.OwnerID,
		Title:        video.Title,
		Description:  video.Description,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		DurationSecs: video.DurationSecs,
		Views:        video.Views,
		Published:    video.Published,
		LikeCount:    h.Store.CountLikes(r.Context(), video.ID),
		CreatedAt:    video.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    video.UpdatedAt.UTC().Format(timeFormat),
	}
	if viewer, ok := UserFromContext(r.Context()); ok {
		resp.Liked = h.Store.HasLiked(r.Context(), video.ID, viewer.ID)
	}
	return resp
}

// Videos serves the collection: listing published videos and uploading new
// ones.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVideos(w, r)
	case http.MethodPost:
		h.createVideo(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))

	// Owners may include their own drafts; everyone else sees published only.
	includeUnpublished := false
	if viewer, ok := UserFromContext(r.Context()); ok && ownerID != "" && viewer.ID == ownerID {
		includeUnpublished = true
	}

	videos, err := h.Store.ListVideos(r.Context(), ownerID, query, includeUnpublished)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	responses := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		responses = append(responses, h.newVideoResponse(r, video))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) createVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	form, err := readMultipartForm(r, map[string]int64{
		"videoFile": maxVideoUploadBytes,
		"thumbnail": maxImageUploadBytes,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	title := form.field("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	videoFile := form.files["videoFile"]
	if videoFile == nil {
		writeError(w, http.StatusBadRequest, errors.New("videoFile is required"))
		return
	}

	videoURL, err := h.storeUpload(r.Context(), "videos/", videoFile)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	thumbnailURL, err := h.storeUpload(r.Context(), "thumbnails/", form.files["thumbnail"])
	if err != nil {
		h.removeUpload(r.Context(), videoURL)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	duration := 0
	if raw := form.field("durationSeconds"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil && parsed >= 0 {
			duration = parsed
		}
	}

	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		OwnerID:      user.ID,
		Title:        title,
		Description:  form.field("description"),
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		DurationSecs: duration,
	})
	if err != nil {
		h.removeUpload(r.Context(), videoURL)
		h.removeUpload(r.Context(), thumbnailURL)
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, h.newVideoResponse(r, video))
}

// VideoByID routes a single video's subresources: the video itself, publish
// toggling, view recording, likes, and comments.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("video not found"))
		return
	}
	videoID := segments[0]

	if len(segments) == 2 {
		switch segments[1] {
		case "publish":
			h.togglePublish(w, r, videoID)
			return
		case "view":
			h.recordView(w, r, videoID)
			return
		case "like":
			h.handleLike(w, r, videoID)
			return
		case "comments":
			h.videoComments(w, r, videoID)
			return
		}
	}
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, errors.New("video not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getVideo(w, r, videoID)
	case http.MethodPatch:
		h.updateVideo(w, r, videoID)
	case http.MethodDelete:
		h.deleteVideo(w, r, videoID)
	default:
		methodNotAllowed(w, "GET, PATCH, DELETE")
	}
}

// visibleVideo loads the video and enforces draft visibility: unpublished
// videos exist only for their owner.
func (h *Handler) visibleVideo(w http.ResponseWriter, r *http.Request, videoID string) (models.Video, bool) {
	video, exists, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return models.Video{}, false
	}
	if exists && !video.Published {
		viewer, ok := UserFromContext(r.Context())
		if !ok || viewer.ID != video.OwnerID {
			exists = false
		}
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return models.Video{}, false
	}
	return video, true
}

// ownedVideo loads the video and requires the authenticated user to own it.
func (h *Handler) ownedVideo(w http.ResponseWriter, r *http.Request, videoID string) (models.Video, models.User, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.Video{}, models.User{}, false
	}
	video, exists, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return models.Video{}, models.User{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return models.Video{}, models.User{}, false
	}
	if video.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, errors.New("forbidden"))
		return models.Video{}, models.User{}, false
	}
	return video, user, true
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, ok := h.visibleVideo(w, r, videoID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(r, video))
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, _, ok := h.ownedVideo(w, r, videoID); !ok {
		return
	}

	update := storage.VideoUpdate{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		form, err := readMultipartForm(r, map[string]int64{"thumbnail": maxImageUploadBytes})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if value, ok := form.fields["title"]; ok {
			update.Title = &value
		}
		if value, ok := form.fields["description"]; ok {
			update.Description = &value
		}
		if file := form.files["thumbnail"]; file != nil {
			url, err := h.storeUpload(r.Context(), "thumbnails/", file)
			if err != nil {
				writeError(w, http.StatusBadGateway, err)
				return
			}
			update.ThumbnailURL = &url
		}
	} else {
		var req updateVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
			return
		}
		update.Title = req.Title
		update.Description = req.Description
	}

	if update.Title == nil && update.Description == nil && update.ThumbnailURL == nil {
		writeError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	video, err := h.Store.UpdateVideo(r.Context(), videoID, update)
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(r, video))
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, _, ok := h.ownedVideo(w, r, videoID); !ok {
		return
	}
	if err := h.Store.DeleteVideo(r.Context(), videoID); err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if _, _, ok := h.ownedVideo(w, r, videoID); !ok {
		return
	}
	video, err := h.Store.TogglePublish(r.Context(), videoID)
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(r, video))
}

func (h *Handler) recordView(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if _, ok := h.visibleVideo(w, r, videoID); !ok {
		return
	}
	viewerID := ""
	if viewer, ok := UserFromContext(r.Context()); ok {
		viewerID = viewer.ID
	}
	video, err := h.Store.RecordView(r.Context(), videoID, viewerID)
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(r, video))
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if _, ok := h.visibleVideo(w, r, videoID); !ok {
		return
	}

	var count int
	var err error
	switch r.Method {
	case http.MethodPost:
		count, err = h.Store.LikeVideo(r.Context(), videoID, user.ID)
	case http.MethodDelete:
		count, err = h.Store.UnlikeVideo(r.Context(), videoID, user.ID)
	default:
		methodNotAllowed(w, "POST, DELETE")
		return
	}
	if err != nil {
		writeError(w, statusForStorageError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"likeCount": count,
		"liked":     h.Store.HasLiked(r.Context(), videoID, user.ID),
	})
}
