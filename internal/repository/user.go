package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"monch/internal/model"
)

const userColumns = `id, username, password_hashed, display_name, bio, avatar_url, avatar_key, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user. A concurrent registration of the same
// username surfaces as ErrUsernameExists through the unique index.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (username, password_hashed, display_name, bio, avatar_url, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.Username,
		u.PasswordHashed,
		u.DisplayName,
		u.Bio,
		u.AvatarURL,
		u.AvatarKey,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &u, nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	searchQuery := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username ILIKE $1 OR display_name ILIKE $1
		ORDER BY username
		LIMIT $2
	`

	var users []model.User
	err := r.db.SelectContext(ctx, &users, searchQuery, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

// UpdateProfile persists display name, bio and avatar of u.
func (r *userRepository) UpdateProfile(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET display_name = $2, bio = $3, avatar_url = $4, avatar_key = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, u.ID, u.DisplayName, u.Bio, u.AvatarURL, u.AvatarKey).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID int64) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var avatarKey *string
	err = tx.GetContext(ctx, &avatarKey, `SELECT avatar_key FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	// Replies written by other users under this user's posts go too.
	keysQuery := `
		WITH RECURSIVE doomed AS (
			SELECT id FROM posts WHERE user_id = $1
			UNION
			SELECT p.id FROM posts p JOIN doomed d ON p.parent_post_id = d.id
		)
		SELECT file_key FROM post_media WHERE post_id IN (SELECT id FROM doomed)
	`
	var keys []string
	if err := tx.SelectContext(ctx, &keys, keysQuery, userID); err != nil {
		return nil, fmt.Errorf("collect media keys: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if avatarKey != nil && *avatarKey != "" {
		keys = append(keys, *avatarKey)
	}
	return keys, nil
}

// GetStats computes follower, following and post counters for every user id.
func (r *userRepository) GetStats(ctx context.Context, userIDs []int64) (map[int64]model.UserStats, error) {
	if len(userIDs) == 0 {
		return map[int64]model.UserStats{}, nil
	}

	query := `
		SELECT u.id AS user_id,
		       (SELECT COUNT(*) FROM follows f WHERE f.following_id = u.id) AS followers_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id) AS following_count,
		       (SELECT COUNT(*) FROM posts p WHERE p.user_id = u.id) AS posts_count
		FROM users u
		WHERE u.id = ANY($1)
	`
	var rows []model.UserStats
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	result := make(map[int64]model.UserStats, len(rows))
	for _, s := range rows {
		result[s.UserID] = s
	}
	return result, nil
}
