package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipstream/internal/models"
)

type dataset struct {
	Users         map[string]models.User          `json:"users"`
	Videos        map[string]models.Video         `json:"videos"`
	Comments      map[string]models.Comment       `json:"comments"`
	Playlists     map[string]models.Playlist      `json:"playlists"`
	Likes         map[string]map[string]time.Time `json:"likes"`
	Subscriptions map[string]map[string]time.Time `json:"subscriptions"`
	WatchHistory  map[string][]models.WatchEvent  `json:"watchHistory"`
}

// Storage is a JSON-file-backed repository. Every mutation clones the dataset,
// applies the change, persists atomically, then swaps the in-memory copy, so
// readers never observe a partially applied write.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	media           MediaStore
	historyLimit    int
}

// Option mutates storage configuration.
type Option func(*Storage)

// WithMediaStore installs a media host client used to remove uploaded assets
// when their owning records are deleted.
func WithMediaStore(media MediaStore) Option {
	return func(s *Storage) {
		s.media = media
	}
}

// WithWatchHistoryLimit caps how many watch events are retained per user.
func WithWatchHistoryLimit(limit int) Option {
	return func(s *Storage) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

const defaultWatchHistoryLimit = 200

func newDataset() dataset {
	return dataset{
		Users:         make(map[string]models.User),
		Videos:        make(map[string]models.Video),
		Comments:      make(map[string]models.Comment),
		Playlists:     make(map[string]models.Playlist),
		Likes:         make(map[string]map[string]time.Time),
		Subscriptions: make(map[string]map[string]time.Time),
		WatchHistory:  make(map[string][]models.WatchEvent),
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Comments == nil {
		s.data.Comments = make(map[string]models.Comment)
	}
	if s.data.Playlists == nil {
		s.data.Playlists = make(map[string]models.Playlist)
	}
	if s.data.Likes == nil {
		s.data.Likes = make(map[string]map[string]time.Time)
	}
	if s.data.Subscriptions == nil {
		s.data.Subscriptions = make(map[string]map[string]time.Time)
	}
	if s.data.WatchHistory == nil {
		s.data.WatchHistory = make(map[string][]models.WatchEvent)
	}
}

// NewStorage opens (or initializes) the JSON datastore at the provided path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath:     path,
		media:        noopMediaStore{},
		historyLimit: defaultWatchHistoryLimit,
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.media == nil {
		store.media = noopMediaStore{}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Ping reports whether the backing file remains writable.
func (s *Storage) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("data dir unavailable: %w", err)
	}
	return nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.ensureDatasetInitializedLocked()

	return nil
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", ErrInternal, err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp store file: %w", ErrInternal, err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("%w: encode store file: %w", ErrInternal, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("%w: flush store file: %w", ErrInternal, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: close temp store file: %w", ErrInternal, err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("%w: replace store file: %w", ErrInternal, err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()

	for id, user := range src.Users {
		clone.Users[id] = user
	}
	for id, video := range src.Videos {
		clone.Videos[id] = video
	}
	for id, comment := range src.Comments {
		clone.Comments[id] = comment
	}
	for id, playlist := range src.Playlists {
		cloned := playlist
		if playlist.VideoIDs != nil {
			cloned.VideoIDs = append([]string(nil), playlist.VideoIDs...)
		}
		clone.Playlists[id] = cloned
	}
	for videoID, likes := range src.Likes {
		cloned := make(map[string]time.Time, len(likes))
		for userID, at := range likes {
			cloned[userID] = at
		}
		clone.Likes[videoID] = cloned
	}
	for channelID, subs := range src.Subscriptions {
		cloned := make(map[string]time.Time, len(subs))
		for userID, at := range subs {
			cloned[userID] = at
		}
		clone.Subscriptions[channelID] = cloned
	}
	for userID, events := range src.WatchHistory {
		clone.WatchHistory[userID] = append([]models.WatchEvent(nil), events...)
	}

	return clone
}

func newID() string {
	return uuid.NewString()
}
