package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/models"
)

// CreateUser registers a new account. Usernames and emails are normalized to
// lower case and must be unique across the dataset.
func (s *Storage) CreateUser(_ context.Context, params CreateUserParams) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.TrimSpace(strings.ToLower(params.Username))
	if username == "" {
		return models.User{}, errors.New("username is required")
	}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		return models.User{}, errors.New("email is required")
	}
	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return models.User{}, errors.New("fullName is required")
	}
	if params.Password == "" {
		return models.User{}, errors.New("password is required")
	}

	for _, user := range s.data.Users {
		if user.Username == username {
			return models.User{}, fmt.Errorf("username %s already in use: %w", username, ErrConflict)
		}
		if user.Email == email {
			return models.User{}, fmt.Errorf("email %s already in use: %w", email, ErrConflict)
		}
	}

	passwordHash, err := auth.HashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:            newID(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     params.AvatarURL,
		CoverImageURL: params.CoverImageURL,
		PasswordHash:  passwordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	updatedData := cloneDataset(s.data)
	updatedData.Users[user.ID] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	return user, nil
}

// FindUserByLogin resolves a user by username or email, case-insensitively.
func (s *Storage) FindUserByLogin(_ context.Context, usernameOrEmail string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle := strings.TrimSpace(strings.ToLower(usernameOrEmail))
	if handle == "" {
		return models.User{}, false, nil
	}
	for _, user := range s.data.Users {
		if user.Username == handle || user.Email == handle {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

func (s *Storage) GetUser(_ context.Context, id string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.Users[id]
	return user, ok, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle := strings.TrimSpace(strings.ToLower(username))
	for _, user := range s.data.Users {
		if user.Username == handle {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

// SetRefreshToken stores the user's current refresh token, or clears it when
// the token is empty. The stored value is the sole revocation record for the
// user's session.
func (s *Storage) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	user.RefreshToken = token
	user.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	return nil
}

// UpdateUserDetails applies partial profile changes. A changed email must
// remain unique.
func (s *Storage) UpdateUserDetails(_ context.Context, id string, update UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	if update.FullName != nil {
		fullName := strings.TrimSpace(*update.FullName)
		if fullName == "" {
			return models.User{}, errors.New("fullName cannot be empty")
		}
		user.FullName = fullName
	}
	if update.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*update.Email))
		if email == "" {
			return models.User{}, errors.New("email cannot be empty")
		}
		for otherID, other := range s.data.Users {
			if otherID != id && other.Email == email {
				return models.User{}, fmt.Errorf("email %s already in use: %w", email, ErrConflict)
			}
		}
		user.Email = email
	}
	user.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	return user, nil
}

// SetUserPassword replaces the stored password hash.
func (s *Storage) SetUserPassword(_ context.Context, id, password string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if password == "" {
		return models.User{}, errors.New("password is required")
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	return user, nil
}

// SetUserImages replaces the avatar and/or cover image URLs. Superseded assets
// are removed from the media host on a best-effort basis after the record is
// persisted.
func (s *Storage) SetUserImages(ctx context.Context, id string, update ImageUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	var replaced []string
	if update.AvatarURL != nil {
		if user.AvatarURL != "" && user.AvatarURL != *update.AvatarURL {
			replaced = append(replaced, user.AvatarURL)
		}
		user.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		if user.CoverImageURL != "" && user.CoverImageURL != *update.CoverImageURL {
			replaced = append(replaced, user.CoverImageURL)
		}
		user.CoverImageURL = *update.CoverImageURL
	}
	user.UpdatedAt = time.Now().UTC()

	updatedData := cloneDataset(s.data)
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	for _, url := range replaced {
		_ = s.media.Remove(ctx, url)
	}

	return user, nil
}

// DeleteUser removes the account together with its videos, comments,
// playlists, likes, subscriptions, and watch history.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	updatedData := cloneDataset(s.data)
	delete(updatedData.Users, id)

	var orphanedAssets []string
	if user.AvatarURL != "" {
		orphanedAssets = append(orphanedAssets, user.AvatarURL)
	}
	if user.CoverImageURL != "" {
		orphanedAssets = append(orphanedAssets, user.CoverImageURL)
	}

	for videoID, video := range updatedData.Videos {
		if video.OwnerID != id {
			continue
		}
		if video.VideoURL != "" {
			orphanedAssets = append(orphanedAssets, video.VideoURL)
		}
		if video.ThumbnailURL != "" {
			orphanedAssets = append(orphanedAssets, video.ThumbnailURL)
		}
		delete(updatedData.Videos, videoID)
		delete(updatedData.Likes, videoID)
		for commentID, comment := range updatedData.Comments {
			if comment.VideoID == videoID {
				delete(updatedData.Comments, commentID)
			}
		}
	}

	for commentID, comment := range updatedData.Comments {
		if comment.AuthorID == id {
			delete(updatedData.Comments, commentID)
		}
	}
	for playlistID, playlist := range updatedData.Playlists {
		if playlist.OwnerID == id {
			delete(updatedData.Playlists, playlistID)
		}
	}
	for _, likes := range updatedData.Likes {
		delete(likes, id)
	}
	delete(updatedData.Subscriptions, id)
	for _, subs := range updatedData.Subscriptions {
		delete(subs, id)
	}
	delete(updatedData.WatchHistory, id)

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData

	for _, url := range orphanedAssets {
		_ = s.media.Remove(ctx, url)
	}

	return nil
}
