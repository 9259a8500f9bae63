package handler

import (
	"context"

	"monch/internal/model"
)

// The handlers depend on these narrow views of the service layer.

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest, avatar *model.Upload) (*model.UserView, error)
	CheckUsername(ctx context.Context, username string) (*model.CheckUsernameResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.User, error)
	WhoAmI(ctx context.Context, id int64) (*model.WhoAmIResponse, error)
	Project(ctx context.Context, user *model.User, viewerID *int64) (*model.UserView, error)
	GetProfile(ctx context.Context, username string, viewerID *int64) (*model.UserView, error)
	Search(ctx context.Context, query string, viewerID *int64) ([]*model.UserView, error)
	UpdateProfile(ctx context.Context, actorID int64, username string, req *model.UpdateProfileRequest, avatar *model.Upload) (*model.UserView, error)
	DeleteAccount(ctx context.Context, actorID int64, username string) error
}

type AuthService interface {
	GenerateTokenPair(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*model.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error)
	Logout(ctx context.Context, refreshTokenRaw string, access *model.AccessClaims) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
}

type PostService interface {
	Create(ctx context.Context, userID int64, req *model.CreatePostRequest) (*model.PostView, error)
	GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.PostView, error)
	GetReplies(ctx context.Context, postID int64, viewerID *int64) ([]*model.PostView, error)
	GetThread(ctx context.Context, postID int64, viewerID *int64) (*model.ThreadResponse, error)
	List(ctx context.Context, search string, page model.PageRequest, viewerID *int64) (*model.PostPage, error)
	ListByUser(ctx context.Context, username string, replies bool, page model.PageRequest, viewerID *int64) ([]*model.PostView, error)
	Delete(ctx context.Context, postID, userID int64) error
	Like(ctx context.Context, postID, userID int64) error
	Unlike(ctx context.Context, postID, userID int64) error
	LikedPosts(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error)
}

type FollowService interface {
	Toggle(ctx context.Context, followerID int64, username string) (model.FollowStatus, error)
	IsFollowing(ctx context.Context, followerID int64, username string) (bool, error)
	GetFollowers(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error)
	GetFollowing(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error)
}

type FeedService interface {
	GetFeed(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error)
}
