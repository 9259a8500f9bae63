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

// postSelect joins the author so every scanned post carries its summary.
const postSelect = `
	SELECT p.id, p.user_id, p.content, p.parent_post_id, p.repost_of_id, p.created_at,
	       u.id AS "author.id", u.username AS "author.username",
	       u.display_name AS "author.display_name", u.avatar_url AS "author.avatar_url"
	FROM posts p
	JOIN users u ON u.id = p.user_id
`

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a new post and its media in a transaction.
// ID, CreatedAt and the media ids are filled in on success.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (user_id, content, parent_post_id, repost_of_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, query, post.UserID, post.Content, post.ParentPostID, post.RepostOfID).
		Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		// The referenced parent or original vanished after the service checked it.
		if isForeignKeyViolation(err) {
			return model.ErrPostNotFound
		}
		return fmt.Errorf("insert post: %w", err)
	}

	mediaQuery := `
		INSERT INTO post_media (post_id, file_key, file_url, media_type, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at
	`
	for i := range post.Media {
		m := &post.Media[i]
		m.PostID = post.ID
		m.Position = i
		err = tx.QueryRowxContext(ctx, mediaQuery, post.ID, m.FileKey, m.FileURL, m.MediaType, i).
			Scan(&m.ID, &m.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert media %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a single post with its author and media.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	var post model.Post
	err := r.db.GetContext(ctx, &post, postSelect+` WHERE p.id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	media, err := r.getPostMedia(ctx, []int64{postID})
	if err != nil {
		return nil, err
	}
	post.Media = media[postID]

	return &post, nil
}

// GetByIDs retrieves multiple posts by their IDs with media.
// Used for hydrating feed pages and liked-post lists.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	posts, err := r.selectPosts(ctx, postSelect+` WHERE p.id = ANY($1)`, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	// Re-order posts to match input order (important for feed ordering)
	byID := make(map[int64]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// Exists checks if a post exists.
func (r *postRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

func (r *postRepository) Delete(ctx context.Context, postID int64) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	keysQuery := `
		WITH RECURSIVE doomed AS (
			SELECT id FROM posts WHERE id = $1
			UNION
			SELECT p.id FROM posts p JOIN doomed d ON p.parent_post_id = d.id
		)
		SELECT file_key FROM post_media WHERE post_id IN (SELECT id FROM doomed)
	`
	var keys []string
	if err := tx.SelectContext(ctx, &keys, keysQuery, postID); err != nil {
		return nil, fmt.Errorf("collect media keys: %w", err)
	}

	// Replies and media cascade; reposts keep their snapshot with repost_of nulled.
	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, model.ErrPostNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return keys, nil
}

// ListRoots returns one page of root posts, newest first, optionally
// filtered by a case-insensitive match on content or author username.
func (r *postRepository) ListRoots(ctx context.Context, search string, page model.PageRequest) ([]model.Post, int, error) {
	where := ` WHERE p.parent_post_id IS NULL AND ($1 = '' OR p.content ILIKE $2 OR u.username ILIKE $2)`
	pattern := "%" + escapeLike(search) + "%"

	var count int
	countQuery := `SELECT COUNT(*) FROM posts p JOIN users u ON u.id = p.user_id` + where
	if err := r.db.GetContext(ctx, &count, countQuery, search, pattern); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := postSelect + where + ` ORDER BY p.created_at DESC, p.id DESC LIMIT $3 OFFSET $4`
	posts, err := r.selectPosts(ctx, query, search, pattern, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, count, nil
}

// ListByUser returns the root posts (or replies) written by userID, newest first.
func (r *postRepository) ListByUser(ctx context.Context, userID int64, replies bool, page model.PageRequest) ([]model.Post, error) {
	filter := ` AND p.parent_post_id IS NULL`
	if replies {
		filter = ` AND p.parent_post_id IS NOT NULL`
	}
	query := postSelect + ` WHERE p.user_id = $1` + filter +
		` ORDER BY p.created_at DESC, p.id DESC LIMIT $2 OFFSET $3`

	posts, err := r.selectPosts(ctx, query, userID, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list user posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) GetReplies(ctx context.Context, parentIDs []int64) ([]model.Post, error) {
	if len(parentIDs) == 0 {
		return []model.Post{}, nil
	}

	query := postSelect + ` WHERE p.parent_post_id = ANY($1) ORDER BY p.created_at ASC, p.id ASC`
	posts, err := r.selectPosts(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, fmt.Errorf("get replies: %w", err)
	}
	return posts, nil
}

func (r *postRepository) CountReplies(ctx context.Context, postIDs []int64) (map[int64]int, error) {
	query := `
		SELECT parent_post_id AS id, COUNT(*) AS count
		FROM posts
		WHERE parent_post_id = ANY($1)
		GROUP BY parent_post_id
	`
	counts, err := countByIDs(ctx, r.db, query, postIDs)
	if err != nil {
		return nil, fmt.Errorf("count replies: %w", err)
	}
	return counts, nil
}

func (r *postRepository) GetViewerReposts(ctx context.Context, userID int64, postIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64)
	if len(postIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT repost_of_id AS original_id, MIN(id) AS repost_id
		FROM posts
		WHERE user_id = $1 AND repost_of_id = ANY($2)
		GROUP BY repost_of_id
	`
	type row struct {
		OriginalID int64 `db:"original_id"`
		RepostID   int64 `db:"repost_id"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, userID, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("get viewer reposts: %w", err)
	}
	for _, row := range rows {
		result[row.OriginalID] = row.RepostID
	}
	return result, nil
}

func (r *postRepository) GetRefs(ctx context.Context, postIDs []int64) (map[int64]model.PostRef, error) {
	result := make(map[int64]model.PostRef)
	if len(postIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT p.id,
		       u.id AS "user.id", u.username AS "user.username",
		       u.display_name AS "user.display_name", u.avatar_url AS "user.avatar_url"
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = ANY($1)
	`
	var refs []model.PostRef
	if err := r.db.SelectContext(ctx, &refs, query, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("get post refs: %w", err)
	}
	for _, ref := range refs {
		result[ref.ID] = ref
	}
	return result, nil
}

// GetFeedPostIDs returns root posts authored by the users userID follows,
// newest first.
func (r *postRepository) GetFeedPostIDs(ctx context.Context, userID int64, offset, limit int) ([]int64, error) {
	query := `
		SELECT p.id
		FROM posts p
		JOIN follows f ON f.following_id = p.user_id AND f.follower_id = $1
		WHERE p.parent_post_id IS NULL
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("get feed post ids: %w", err)
	}
	return ids, nil
}

func (r *postRepository) CountFeed(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM posts p
		JOIN follows f ON f.following_id = p.user_id AND f.follower_id = $1
		WHERE p.parent_post_id IS NULL
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count feed: %w", err)
	}
	return count, nil
}

// selectPosts scans posts and attaches their media.
func (r *postRepository) selectPosts(ctx context.Context, query string, args ...interface{}) ([]model.Post, error) {
	var posts []model.Post
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []model.Post{}, nil
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	media, err := r.getPostMedia(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Media = media[posts[i].ID]
	}
	return posts, nil
}

// Helper: fetch media for multiple posts in one query
func (r *postRepository) getPostMedia(ctx context.Context, postIDs []int64) (map[int64][]model.PostMedia, error) {
	if len(postIDs) == 0 {
		return map[int64][]model.PostMedia{}, nil
	}

	query := `
		SELECT id, post_id, file_key, file_url, media_type, position, uploaded_at
		FROM post_media
		WHERE post_id = ANY($1)
		ORDER BY post_id, position
	`
	var media []model.PostMedia
	err := r.db.SelectContext(ctx, &media, query, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get post media: %w", err)
	}

	// Group by post_id
	result := make(map[int64][]model.PostMedia)
	for _, m := range media {
		result[m.PostID] = append(result[m.PostID], m)
	}
	return result, nil
}
