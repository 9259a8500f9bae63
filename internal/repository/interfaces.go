package repository

import (
	"context"
	"time"

	"monch/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	// Delete removes the user and everything that cascades from it and
	// returns the storage keys of the files that backed the removed rows.
	Delete(ctx context.Context, userID int64) ([]string, error)
	GetStats(ctx context.Context, userIDs []int64) (map[int64]model.UserStats, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Rotate atomically revokes oldID and stores next as its replacement.
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type FollowRepository interface {
	// Toggle flips the follower->following edge in a single statement.
	Toggle(ctx context.Context, followerID, followingID int64) (model.FollowStatus, error)
	Exists(ctx context.Context, followerID, followingID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64) ([]model.User, error)
	GetFollowing(ctx context.Context, userID int64) ([]model.User, error)
	CheckFollows(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]bool, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

type LikeRepository interface {
	Like(ctx context.Context, userID, postID int64) error
	Unlike(ctx context.Context, userID, postID int64) error
	CountByPosts(ctx context.Context, postIDs []int64) (map[int64]int, error)
	CheckLikes(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	GetLikedPostIDs(ctx context.Context, userID int64, page model.PageRequest) ([]int64, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	// GetByIDs preserves the order of postIDs and skips missing posts.
	GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error)
	Exists(ctx context.Context, postID int64) (bool, error)
	// Delete removes the post with its reply subtree and returns the
	// storage keys of the media attached to the removed posts.
	Delete(ctx context.Context, postID int64) ([]string, error)
	ListRoots(ctx context.Context, search string, page model.PageRequest) ([]model.Post, int, error)
	ListByUser(ctx context.Context, userID int64, replies bool, page model.PageRequest) ([]model.Post, error)
	// GetReplies returns the direct replies of every parent, oldest first.
	GetReplies(ctx context.Context, parentIDs []int64) ([]model.Post, error)
	CountReplies(ctx context.Context, postIDs []int64) (map[int64]int, error)
	// GetViewerReposts maps an original post id to the viewer's lowest repost id.
	GetViewerReposts(ctx context.Context, userID int64, postIDs []int64) (map[int64]int64, error)
	GetRefs(ctx context.Context, postIDs []int64) (map[int64]model.PostRef, error)
	GetFeedPostIDs(ctx context.Context, userID int64, offset, limit int) ([]int64, error)
	CountFeed(ctx context.Context, userID int64) (int, error)
}
