package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"monch/internal/model"
)

type likeRepository struct {
	db *sqlx.DB
}

func NewLikeRepository(db *sqlx.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Like inserts the (user, post) pair. Returns ErrAlreadyLiked if it exists.
func (r *likeRepository) Like(ctx context.Context, userID, postID int64) error {
	query := `
		INSERT INTO likes (user_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, post_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, userID, postID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrPostNotFound
		}
		return fmt.Errorf("insert like: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrAlreadyLiked
	}
	return nil
}

// Unlike deletes the (user, post) pair. Returns ErrNotLiked if not found.
func (r *likeRepository) Unlike(ctx context.Context, userID, postID int64) error {
	query := `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, postID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotLiked
	}
	return nil
}

func (r *likeRepository) CountByPosts(ctx context.Context, postIDs []int64) (map[int64]int, error) {
	query := `
		SELECT post_id AS id, COUNT(*) AS count
		FROM likes
		WHERE post_id = ANY($1)
		GROUP BY post_id
	`
	counts, err := countByIDs(ctx, r.db, query, postIDs)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	return counts, nil
}

// CheckLikes checks which posts the user has liked.
func (r *likeRepository) CheckLikes(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	if len(postIDs) == 0 {
		return make(map[int64]bool), nil
	}

	query := `SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2)`
	var likedIDs []int64
	err := r.db.SelectContext(ctx, &likedIDs, query, userID, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("check likes: %w", err)
	}

	result := make(map[int64]bool, len(postIDs))
	for _, id := range postIDs {
		result[id] = false
	}
	for _, id := range likedIDs {
		result[id] = true
	}
	return result, nil
}

// GetLikedPostIDs returns the posts liked by userID, most recent like first.
func (r *likeRepository) GetLikedPostIDs(ctx context.Context, userID int64, page model.PageRequest) ([]int64, error) {
	query := `
		SELECT post_id
		FROM likes
		WHERE user_id = $1
		ORDER BY created_at DESC, post_id DESC
		LIMIT $2 OFFSET $3
	`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, userID, page.PageSize, page.Offset()); err != nil {
		return nil, fmt.Errorf("get liked posts: %w", err)
	}
	return ids, nil
}

func (r *likeRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM likes WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("count liked posts: %w", err)
	}
	return count, nil
}
