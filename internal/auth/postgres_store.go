package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipstream/internal/models"
)

// PostgresCredentialStore persists user credentials in a Postgres table,
// allowing multiple API replicas to share authentication state.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore opens a Postgres-backed credential store using
// the provided DSN.
func NewPostgresCredentialStore(ctx context.Context, dsn string) (*PostgresCredentialStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres credential dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres credential config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres credential pool: %w", err)
	}
	return &PostgresCredentialStore{pool: pool}, nil
}

// Close releases the Postgres connection pool resources.
func (s *PostgresCredentialStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Ping verifies the backing pool is reachable.
func (s *PostgresCredentialStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres credential pool not configured")
	}
	return s.pool.Ping(ctx)
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// FindUserByLogin resolves a username or email, ignoring case.
func (s *PostgresCredentialStore) FindUserByLogin(ctx context.Context, usernameOrEmail string) (models.User, bool, error) {
	if s.pool == nil {
		return models.User{}, false, fmt.Errorf("postgres credential pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE lower(username) = lower($1) OR lower(email) = lower($1)
`, usernameOrEmail)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return user, true, nil
}

// GetUser retrieves the user record by identifier.
func (s *PostgresCredentialStore) GetUser(ctx context.Context, id string) (models.User, bool, error) {
	if s.pool == nil {
		return models.User{}, false, fmt.Errorf("postgres credential pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return user, true, nil
}

// SetRefreshToken overwrites the stored refresh token; an empty token clears it.
func (s *PostgresCredentialStore) SetRefreshToken(ctx context.Context, id, token string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres credential pool not configured")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1
`, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
