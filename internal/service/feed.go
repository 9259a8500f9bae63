package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"monch/internal/cache"
	"monch/internal/metrics"
	"monch/internal/model"
	"monch/internal/repository"
)

type FeedService struct {
	feedCache  cache.FeedCache
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	projector  *Projector
	logger     *zap.Logger
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	projector *Projector,
	logger *zap.Logger,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		postRepo:   postRepo,
		followRepo: followRepo,
		projector:  projector,
		logger:     logger,
	}
}

// GetFeed returns a page of root posts written by the users userID follows,
// newest first.
//
// Flow:
// 1. Count the feed in Postgres (counts are never cached)
// 2. Pages inside the cache window are read from the cache, warming it on a miss
// 3. Pages beyond the window go straight to Postgres
// 4. Hydrate and project the posts with depth 0
func (s *FeedService) GetFeed(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error) {
	startTime := time.Now()
	page = page.Normalize()

	count, err := s.postRepo.CountFeed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count feed: %w", err)
	}

	postIDs, err := s.pageIDs(ctx, userID, page)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate feed: %w", err)
	}

	views, err := s.projector.ProjectPosts(ctx, posts, &userID, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("feed served",
		zap.Int64("user_id", userID),
		zap.Int("page", page.Page),
		zap.Int("posts", len(views)),
		zap.Duration("duration", time.Since(startTime)))

	return model.NewPostPage(page, count, views), nil
}

func (s *FeedService) pageIDs(ctx context.Context, userID int64, page model.PageRequest) ([]int64, error) {
	offset, limit := page.Offset(), page.PageSize
	if offset < 0 || limit <= 0 {
		return []int64{}, nil
	}
	window := s.feedCache.Window()

	if offset+limit > window {
		metrics.FeedCacheLookups.WithLabelValues("bypass").Inc()
		return s.fromDB(ctx, userID, offset, limit)
	}

	ids, found, err := s.feedCache.Page(ctx, userID, offset, limit)
	switch {
	case err != nil:
		metrics.FeedCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("feed cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		return s.fromDB(ctx, userID, offset, limit)
	case found:
		metrics.FeedCacheLookups.WithLabelValues("hit").Inc()
		return ids, nil
	}

	metrics.FeedCacheLookups.WithLabelValues("miss").Inc()
	warm, err := s.fromDB(ctx, userID, 0, window)
	if err != nil {
		return nil, err
	}
	if err := s.feedCache.Store(ctx, userID, warm); err != nil {
		s.logger.Warn("feed cache warm failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	if offset >= len(warm) {
		return []int64{}, nil
	}
	return warm[offset:min(offset+limit, len(warm))], nil
}

func (s *FeedService) fromDB(ctx context.Context, userID int64, offset, limit int) ([]int64, error) {
	ids, err := s.postRepo.GetFeedPostIDs(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	return ids, nil
}

// Invalidate drops the cached feeds of the given users, after the set of
// users they follow changed.
func (s *FeedService) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	if err := s.feedCache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.Warn("feed cache invalidation failed", zap.Int64s("user_ids", userIDs), zap.Error(err))
	}
}

// InvalidateFollowers drops the cached feeds of everyone following authorID,
// after a root post of authorID appeared or disappeared.
func (s *FeedService) InvalidateFollowers(ctx context.Context, authorID int64) {
	followerIDs, err := s.followRepo.GetFollowerIDs(ctx, authorID)
	if err != nil {
		s.logger.Warn("failed to load followers for feed invalidation", zap.Int64("author_id", authorID), zap.Error(err))
		return
	}
	s.Invalidate(ctx, followerIDs...)
}
