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

// LikeVideo records the user's like and returns the updated count. The
// operation is idempotent.
func (s *Storage) LikeVideo(_ context.Context, videoID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return 0, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if _, ok := s.data.Users[userID]; !ok {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	likes := updatedData.Likes[videoID]
	if likes == nil {
		likes = make(map[string]time.Time)
	}
	if _, exists := likes[userID]; !exists {
		likes[userID] = time.Now().UTC()
	}
	updatedData.Likes[videoID] = likes

	if err := s.persistDataset(updatedData); err != nil {
		return 0, err
	}
	s.data = updatedData

	return len(likes), nil
}

// UnlikeVideo removes the user's like if present and returns the updated
// count. The operation is idempotent.
func (s *Storage) UnlikeVideo(_ context.Context, videoID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return 0, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	likes := updatedData.Likes[videoID]
	if likes != nil {
		delete(likes, userID)
		if len(likes) == 0 {
			delete(updatedData.Likes, videoID)
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return 0, err
	}
	s.data = updatedData

	return len(likes), nil
}

func (s *Storage) CountLikes(_ context.Context, videoID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data.Likes[videoID])
}

func (s *Storage) HasLiked(_ context.Context, videoID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	likes, ok := s.data.Likes[videoID]
	if !ok {
		return false
	}
	_, exists := likes[userID]
	return exists
}

// CreateComment appends a comment to the video's thread.
func (s *Storage) CreateComment(_ context.Context, videoID, authorID, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if _, ok := s.data.Users[authorID]; !ok {
		return models.Comment{}, fmt.Errorf("user %s: %w", authorID, ErrNotFound)
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, errors.New("comment content cannot be empty")
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        newID(),
		VideoID:   videoID,
		AuthorID:  authorID,
		Content:   trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	updatedData := cloneDataset(s.data)
	updatedData.Comments[comment.ID] = comment

	if err := s.persistDataset(updatedData); err != nil {
		return models.Comment{}, err
	}
	s.data = updatedData

	return comment, nil
}

// ListComments returns the video's comments oldest first.
func (s *Storage) ListComments(_ context.Context, videoID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	comments := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}

	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, nil
}

func (s *Storage) GetComment(_ context.Context, id string) (models.Comment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.data.Comments[id]
	return comment, ok, nil
}

func (s *Storage) UpdateComment(_ context.Context, id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, errors.New("comment content cannot be empty")
	}

	comment.Content = trimmed
	comment.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Comments[id] = comment

	if err := s.persistDataset(updatedData); err != nil {
		return models.Comment{}, err
	}
	s.data = updatedData

	return comment, nil
}

func (s *Storage) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	delete(updatedData.Comments, id)

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	return nil
}

// CreatePlaylist creates an empty playlist owned by the user.
func (s *Storage) CreatePlaylist(_ context.Context, ownerID, name, description string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Playlist{}, fmt.Errorf("user %s: %w", ownerID, ErrNotFound)
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Playlist{}, errors.New("playlist name is required")
	}

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          newID(),
		OwnerID:     ownerID,
		Name:        trimmed,
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updatedData := cloneDataset(s.data)
	updatedData.Playlists[playlist.ID] = playlist

	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}
	s.data = updatedData

	return playlist, nil
}

func (s *Storage) GetPlaylist(_ context.Context, id string) (models.Playlist, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist, ok := s.data.Playlists[id]
	if ok && playlist.VideoIDs != nil {
		playlist.VideoIDs = append([]string(nil), playlist.VideoIDs...)
	}
	return playlist, ok, nil
}

// ListPlaylists returns the user's playlists newest first.
func (s *Storage) ListPlaylists(_ context.Context, ownerID string) ([]models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]models.Playlist, 0)
	for _, playlist := range s.data.Playlists {
		if playlist.OwnerID != ownerID {
			continue
		}
		playlist.VideoIDs = append([]string(nil), playlist.VideoIDs...)
		playlists = append(playlists, playlist)
	}

	sort.Slice(playlists, func(i, j int) bool {
		if playlists[i].CreatedAt.Equal(playlists[j].CreatedAt) {
			return playlists[i].ID < playlists[j].ID
		}
		return playlists[i].CreatedAt.After(playlists[j].CreatedAt)
	})

	return playlists, nil
}

func (s *Storage) UpdatePlaylist(_ context.Context, id string, update PlaylistUpdate) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}

	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return models.Playlist{}, errors.New("playlist name cannot be empty")
		}
		playlist.Name = trimmed
	}
	if update.Description != nil {
		playlist.Description = strings.TrimSpace(*update.Description)
	}
	playlist.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Playlists[id] = playlist

	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}
	s.data = updatedData

	return playlist, nil
}

func (s *Storage) DeletePlaylist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Playlists[id]; !ok {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	delete(updatedData.Playlists, id)

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	return nil
}

// AddPlaylistVideo appends the video to the playlist unless already present.
func (s *Storage) AddPlaylistVideo(_ context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Playlist{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	playlist = updatedData.Playlists[playlistID]

	for _, existing := range playlist.VideoIDs {
		if existing == videoID {
			return playlist, nil
		}
	}
	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	playlist.UpdatedAt = time.Now().UTC()
	updatedData.Playlists[playlistID] = playlist

	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}
	s.data = updatedData

	return playlist, nil
}

// RemovePlaylistVideo drops the video from the playlist if present.
func (s *Storage) RemovePlaylistVideo(_ context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Playlists[playlistID]; !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	playlist := updatedData.Playlists[playlistID]

	filtered := playlist.VideoIDs[:0:0]
	for _, existing := range playlist.VideoIDs {
		if existing != videoID {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(playlist.VideoIDs) {
		return playlist, nil
	}
	playlist.VideoIDs = filtered
	playlist.UpdatedAt = time.Now().UTC()
	updatedData.Playlists[playlistID] = playlist

	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}
	s.data = updatedData

	return playlist, nil
}

// Subscribe records the subscriber following the channel. Channels are users,
// so the channel identifier is the channel owner's user ID. The operation is
// idempotent; self-subscription is rejected.
func (s *Storage) Subscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subscriberID == channelID {
		return errors.New("cannot subscribe to your own channel")
	}
	if _, ok := s.data.Users[subscriberID]; !ok {
		return fmt.Errorf("user %s: %w", subscriberID, ErrNotFound)
	}
	if _, ok := s.data.Users[channelID]; !ok {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	subs := updatedData.Subscriptions[channelID]
	if subs == nil {
		subs = make(map[string]time.Time)
	}
	if _, exists := subs[subscriberID]; !exists {
		subs[subscriberID] = time.Now().UTC()
	}
	updatedData.Subscriptions[channelID] = subs

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	return nil
}

// Unsubscribe removes the association if present. The operation is idempotent.
func (s *Storage) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[channelID]; !ok {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	if subs, ok := updatedData.Subscriptions[channelID]; ok {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(updatedData.Subscriptions, channelID)
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	return nil
}

func (s *Storage) IsSubscribed(_ context.Context, subscriberID, channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, ok := s.data.Subscriptions[channelID]
	if !ok {
		return false
	}
	_, exists := subs[subscriberID]
	return exists
}

func (s *Storage) CountSubscribers(_ context.Context, channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data.Subscriptions[channelID])
}

// ListSubscribedChannelIDs returns the channels the user follows ordered by
// recency of subscription.
func (s *Storage) ListSubscribedChannelIDs(_ context.Context, subscriberID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pair struct {
		id   string
		when time.Time
	}

	var pairs []pair
	for channelID, subs := range s.data.Subscriptions {
		if at, ok := subs[subscriberID]; ok {
			pairs = append(pairs, pair{id: channelID, when: at})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].when.Equal(pairs[j].when) {
			return pairs[i].id < pairs[j].id
		}
		return pairs[i].when.After(pairs[j].when)
	})

	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.id)
	}
	return ids
}
