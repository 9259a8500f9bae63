package service

import (
	"context"

	"go.uber.org/zap"

	"monch/internal/model"
	"monch/internal/repository"
	"monch/internal/validation"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	projector  *Projector
	feeds      *FeedService
	logger     *zap.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	projector *Projector,
	feeds *FeedService,
	logger *zap.Logger,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		projector:  projector,
		feeds:      feeds,
		logger:     logger,
	}
}

// Toggle follows username when followerID does not follow it yet and
// unfollows it otherwise. The follower's cached feed is dropped either way.
func (s *FollowService) Toggle(ctx context.Context, followerID int64, username string) (model.FollowStatus, error) {
	target, err := s.userRepo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return "", err
	}
	if target.ID == followerID {
		return "", model.NewValidationError("username", model.ErrCannotFollowSelf.Error())
	}

	status, err := s.followRepo.Toggle(ctx, followerID, target.ID)
	if err != nil {
		return "", err
	}

	s.feeds.Invalidate(ctx, followerID)

	s.logger.Debug("follow toggled",
		zap.Int64("follower_id", followerID),
		zap.Int64("following_id", target.ID),
		zap.String("status", string(status)))
	return status, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID int64, username string) (bool, error) {
	target, err := s.userRepo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return false, err
	}
	if target.ID == followerID {
		return false, nil
	}
	return s.followRepo.Exists(ctx, followerID, target.ID)
}

// GetFollowers lists the users following username, newest follow first.
func (s *FollowService) GetFollowers(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error) {
	user, err := s.userRepo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	users, err := s.followRepo.GetFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectUsers(ctx, users, viewerID)
}

// GetFollowing lists the users username follows, newest follow first.
func (s *FollowService) GetFollowing(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error) {
	user, err := s.userRepo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	users, err := s.followRepo.GetFollowing(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectUsers(ctx, users, viewerID)
}
