package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"monch/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Toggle removes the edge when it exists and creates it otherwise.
//
// Both branches run inside one statement, so two concurrent toggles of the
// same pair serialize on the primary key: at most one edge ever exists and
// each call reports the state it produced.
func (r *followRepository) Toggle(ctx context.Context, followerID, followingID int64) (model.FollowStatus, error) {
	query := `
		WITH removed AS (
			DELETE FROM follows
			WHERE follower_id = $1 AND following_id = $2
			RETURNING follower_id
		), added AS (
			INSERT INTO follows (follower_id, following_id)
			SELECT $1, $2
			WHERE NOT EXISTS (SELECT 1 FROM removed)
			ON CONFLICT (follower_id, following_id) DO NOTHING
			RETURNING follower_id
		)
		SELECT EXISTS (SELECT 1 FROM removed)
	`
	var removed bool
	if err := r.db.GetContext(ctx, &removed, query, followerID, followingID); err != nil {
		if isForeignKeyViolation(err) {
			return "", model.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to toggle follow: %w", err)
	}

	if removed {
		return model.FollowStatusUnfollowed, nil
	}
	return model.FollowStatusFollowed, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

// GetFollowers returns users following userID, most recent follow first.
func (r *followRepository) GetFollowers(ctx context.Context, userID int64) ([]model.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hashed, u.display_name, u.bio, u.avatar_url, u.avatar_key,
		       u.created_at, u.updated_at
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.created_at DESC, u.id DESC
	`
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return users, nil
}

// GetFollowing returns users followed by userID, most recent follow first.
func (r *followRepository) GetFollowing(ctx context.Context, userID int64) ([]model.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hashed, u.display_name, u.bio, u.avatar_url, u.avatar_key,
		       u.created_at, u.updated_at
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC, u.id DESC
	`
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return users, nil
}

func (r *followRepository) CheckFollows(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]bool, error) {
	if len(followingIDs) == 0 {
		return make(map[int64]bool), nil
	}

	query := `SELECT following_id FROM follows WHERE follower_id = $1 AND following_id = ANY($2)`
	var followedIDs []int64
	err := r.db.SelectContext(ctx, &followedIDs, query, followerID, pq.Array(followingIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}

	result := make(map[int64]bool, len(followingIDs))
	for _, id := range followingIDs {
		result[id] = false
	}
	for _, id := range followedIDs {
		result[id] = true
	}

	return result, nil
}

// GetFollowerIDs returns the ids of every follower of userID.
func (r *followRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE following_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}
