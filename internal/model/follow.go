package model

import (
	"errors"
	"time"
)

type Follow struct {
	FollowerID  int64     `db:"follower_id" json:"follower_id"`
	FollowingID int64     `db:"following_id" json:"following_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type UserSummary struct {
	ID          int64   `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	DisplayName string  `db:"display_name" json:"display_name"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url"`
}

// FollowStatus is the edge state reported by a follow toggle.
type FollowStatus string

const (
	FollowStatusFollowed   FollowStatus = "followed"
	FollowStatusUnfollowed FollowStatus = "unfollowed"
)

type ToggleFollowRequest struct {
	Username string `json:"username" validate:"required"`
}

type ToggleFollowResponse struct {
	Status FollowStatus `json:"status"`
}

type IsFollowingResponse struct {
	IsFollowing bool `json:"is_following"`
}

var (
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)
