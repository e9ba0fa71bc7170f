package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"clipstream/internal/models"
)

// CreateVideo records a newly uploaded video. Videos start unpublished and
// become visible in listings only after TogglePublish.
func (s *Storage) CreateVideo(_ context.Context, params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, fmt.Errorf("owner %s: %w", params.OwnerID, ErrNotFound)
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	if params.VideoURL == "" {
		return models.Video{}, errors.New("video file is required")
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:           newID(),
		OwnerID:      params.OwnerID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		VideoURL:     params.VideoURL,
		ThumbnailURL: params.ThumbnailURL,
		DurationSecs: params.DurationSecs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	updatedData := cloneDataset(s.data)
	updatedData.Videos[video.ID] = video

	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}
	s.data = updatedData

	return video, nil
}

func (s *Storage) GetVideo(_ context.Context, id string) (models.Video, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.data.Videos[id]
	return video, ok, nil
}

// ListVideos returns videos newest first. The owner filter and the free-text
// query are both optional; unpublished videos are included only when the
// caller asks for them, which handlers restrict to the owner's own listings.
func (s *Storage) ListVideos(_ context.Context, ownerID, query string, includeUnpublished bool) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.TrimSpace(strings.ToLower(query))

	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if ownerID != "" && video.OwnerID != ownerID {
			continue
		}
		if !video.Published && !includeUnpublished {
			continue
		}
		if needle != "" {
			haystack := strings.ToLower(video.Title + " " + video.Description)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		videos = append(videos, video)
	}

	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})

	return videos, nil
}

// UpdateVideo applies partial changes. A replaced thumbnail is removed from
// the media host on a best-effort basis after the record is persisted.
func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	var replacedThumbnail string
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return models.Video{}, errors.New("title cannot be empty")
		}
		video.Title = title
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		if video.ThumbnailURL != "" && video.ThumbnailURL != *update.ThumbnailURL {
			replacedThumbnail = video.ThumbnailURL
		}
		video.ThumbnailURL = *update.ThumbnailURL
	}
	video.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Videos[id] = video

	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}
	s.data = updatedData

	if replacedThumbnail != "" {
		_ = s.media.Remove(ctx, replacedThumbnail)
	}

	return video, nil
}

// TogglePublish flips the video's publish flag.
func (s *Storage) TogglePublish(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	video.Published = !video.Published
	video.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Videos[id] = video

	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}
	s.data = updatedData

	return video, nil
}

// DeleteVideo removes the video along with its comments, likes, playlist
// entries, and uploaded media assets.
func (s *Storage) DeleteVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	delete(updatedData.Videos, id)
	delete(updatedData.Likes, id)

	for commentID, comment := range updatedData.Comments {
		if comment.VideoID == id {
			delete(updatedData.Comments, commentID)
		}
	}
	for playlistID, playlist := range updatedData.Playlists {
		filtered := playlist.VideoIDs[:0:0]
		for _, videoID := range playlist.VideoIDs {
			if videoID != id {
				filtered = append(filtered, videoID)
			}
		}
		if len(filtered) != len(playlist.VideoIDs) {
			playlist.VideoIDs = filtered
			playlist.UpdatedAt = time.Now().UTC()
			updatedData.Playlists[playlistID] = playlist
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	if video.VideoURL != "" {
		_ = s.media.Remove(ctx, video.VideoURL)
	}
	if video.ThumbnailURL != "" {
		_ = s.media.Remove(ctx, video.ThumbnailURL)
	}

	return nil
}

// RecordView increments the video's view counter and, when the viewer is
// signed in, prepends the video to their watch history.
func (s *Storage) RecordView(_ context.Context, videoID, viewerID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	video.Views++
	updatedData := cloneDataset(s.data)
	updatedData.Videos[videoID] = video

	if viewerID != "" {
		if _, ok := updatedData.Users[viewerID]; ok {
			history := updatedData.WatchHistory[viewerID]
			trimmed := make([]models.WatchEvent, 0, len(history)+1)
			trimmed = append(trimmed, models.WatchEvent{VideoID: videoID, WatchedAt: time.Now().UTC()})
			for _, event := range history {
				if event.VideoID == videoID {
					continue
				}
				trimmed = append(trimmed, event)
			}
			if len(trimmed) > s.historyLimit {
				trimmed = trimmed[:s.historyLimit]
			}
			updatedData.WatchHistory[viewerID] = trimmed
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}
	s.data = updatedData

	return video, nil
}

// WatchHistory returns the user's watch events, most recent first.
func (s *Storage) WatchHistory(_ context.Context, userID string) ([]models.WatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	history := s.data.WatchHistory[userID]
	return append([]models.WatchEvent(nil), history...), nil
}
