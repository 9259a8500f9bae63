package model

import (
	"errors"
	"time"
)

// Post is a root post, a reply (ParentPostID set) or a repost (RepostOfID set).
type Post struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Content      string    `db:"content" json:"content"`
	ParentPostID *int64    `db:"parent_post_id" json:"parent_post"`
	RepostOfID   *int64    `db:"repost_of_id" json:"repost_of"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// Joined fields (not in posts table)
	Author UserSummary `db:"author" json:"user"`
	Media  []PostMedia `db:"-" json:"media"`
}

func (p *Post) IsRoot() bool {
	return p.ParentPostID == nil
}

// PostMedia is a processed image or gif attached to a post.
type PostMedia struct {
	ID         int64     `db:"id" json:"id"`
	PostID     int64     `db:"post_id" json:"-"`
	FileKey    string    `db:"file_key" json:"-"`
	FileURL    string    `db:"file_url" json:"url"`
	MediaType  string    `db:"media_type" json:"media_type"`
	Position   int       `db:"position" json:"position"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// PostRef identifies a referenced post and its author.
type PostRef struct {
	ID   int64       `db:"id" json:"id"`
	User UserSummary `db:"user" json:"user"`
}

// PostView is the viewer-relative projection of a post.
type PostView struct {
	ID               int64       `json:"id"`
	User             UserSummary `json:"user"`
	Content          string      `json:"content"`
	CreatedAt        time.Time   `json:"created_at"`
	ParentPost       *int64      `json:"parent_post"`
	ParentPostDetail *PostRef    `json:"parent_post_detail"`
	RepostOf         *int64      `json:"repost_of"`
	RepostOfDetail   *PostRef    `json:"repost_of_detail"`
	Media            []PostMedia `json:"media"`
	Likes            int         `json:"likes"`
	LikedByUser      bool        `json:"liked_by_user"`
	RepostedByUser   bool        `json:"reposted_by_user"`
	UserRepostID     *int64      `json:"user_repost_id"`
	RepliesCount     int         `json:"replies_count"`
	Replies          []*PostView `json:"replies"`
	RepliesTruncated bool        `json:"replies_truncated,omitempty"`
}

// ThreadResponse is a post together with its direct replies.
type ThreadResponse struct {
	Original *PostView   `json:"original"`
	Replies  []*PostView `json:"replies"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Content      string   `json:"content" validate:"max=500"`
	ParentPostID *int64   `json:"parent_post"`
	RepostOfID   *int64   `json:"repost_of"`
	Media        []Upload `json:"-"`
}

// Post constants
const (
	MaxPostContentLength = 500
	MaxPostMediaCount    = 4
	PostMediaFolder      = "posts"
)

// Post errors
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrNotPostOwner   = errors.New("not the owner of this post")
	ErrEmptyPost      = errors.New("post must have content or media")
	ErrTooManyMedia   = errors.New("too many media items")
	ErrRepostAndReply = errors.New("a post cannot be both a reply and a repost")
	ErrRepostMedia    = errors.New("a repost cannot carry its own media")
)
