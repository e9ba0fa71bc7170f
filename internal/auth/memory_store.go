package auth

import (
	"context"
	"strings"
	"sync"

	"clipstream/internal/models"
)

// MemoryCredentialStore keeps user records in memory. It is safe for
// concurrent use and primarily intended for development and tests.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryCredentialStore constructs an in-memory store implementation.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{users: make(map[string]models.User)}
}

// PutUser inserts or replaces the user record.
func (s *MemoryCredentialStore) PutUser(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// DeleteUser removes the user record.
func (s *MemoryCredentialStore) DeleteUser(id string) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

// FindUserByLogin resolves a username or email, ignoring case.
func (s *MemoryCredentialStore) FindUserByLogin(_ context.Context, usernameOrEmail string) (models.User, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	if needle == "" {
		return models.User{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.ToLower(user.Username) == needle || strings.ToLower(user.Email) == needle {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

// GetUser retrieves the user record by identifier.
func (s *MemoryCredentialStore) GetUser(_ context.Context, id string) (models.User, bool, error) {
	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()
	return user, ok, nil
}

// SetRefreshToken overwrites the stored refresh token; an empty token clears it.
func (s *MemoryCredentialStore) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = token
	s.users[id] = user
	return nil
}
