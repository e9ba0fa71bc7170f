package storage

import (
	"context"

	"clipstream/internal/auth"
	"clipstream/internal/models"
)

// Repository exposes the datastore operations required by API handlers. It
// embeds the credential-store contract consumed by the session manager so a
// single backing store serves both.
type Repository interface {
	auth.CredentialStore

	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, bool, error)
	UpdateUserDetails(ctx context.Context, id string, update UserUpdate) (models.User, error)
	SetUserPassword(ctx context.Context, id, password string) (models.User, error)
	SetUserImages(ctx context.Context, id string, update ImageUpdate) (models.User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, bool, error)
	ListVideos(ctx context.Context, ownerID, query string, includeUnpublished bool) ([]models.Video, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	TogglePublish(ctx context.Context, id string) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	RecordView(ctx context.Context, videoID, viewerID string) (models.Video, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchEvent, error)

	LikeVideo(ctx context.Context, videoID, userID string) (int, error)
	UnlikeVideo(ctx context.Context, videoID, userID string) (int, error)
	CountLikes(ctx context.Context, videoID string) int
	HasLiked(ctx context.Context, videoID, userID string) bool

	CreateComment(ctx context.Context, videoID, authorID, content string) (models.Comment, error)
	ListComments(ctx context.Context, videoID string) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, bool, error)
	UpdateComment(ctx context.Context, id, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (models.Playlist, bool, error)
	ListPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)
	RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)

	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	IsSubscribed(ctx context.Context, subscriberID, channelID string) bool
	CountSubscribers(ctx context.Context, channelID string) int
	ListSubscribedChannelIDs(ctx context.Context, subscriberID string) []string
}

var _ Repository = (*Storage)(nil)

// CreateUserParams carries the registration fields; the password arrives in
// plaintext and is hashed before it is stored.
type CreateUserParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// UserUpdate applies partial changes; nil fields are left untouched.
type UserUpdate struct {
	FullName *string
	Email    *string
}

// ImageUpdate applies partial avatar/cover changes; nil fields are left
// untouched.
type ImageUpdate struct {
	AvatarURL     *string
	CoverImageURL *string
}

type CreateVideoParams struct {
	OwnerID      string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	DurationSecs int
}

// VideoUpdate applies partial changes; nil fields are left untouched.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
}

// PlaylistUpdate applies partial changes; nil fields are left untouched.
type PlaylistUpdate struct {
	Name        *string
	Description *string
}
