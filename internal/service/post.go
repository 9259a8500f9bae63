package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"monch/internal/model"
	"monch/internal/repository"
	"monch/internal/validation"
)

type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	likeRepo  repository.LikeRepository
	media     *MediaService
	projector *Projector
	feeds     *FeedService
	logger    *zap.Logger
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
	media *MediaService,
	projector *Projector,
	feeds *FeedService,
	logger *zap.Logger,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		likeRepo:  likeRepo,
		media:     media,
		projector: projector,
		feeds:     feeds,
		logger:    logger,
	}
}

// Create writes a root post, a reply or a repost for userID.
//
// A repost snapshots the original: its content is copied and every media
// file is duplicated under a new key, so the repost survives the original
// being deleted. Files written here are removed again if the insert fails.
func (s *PostService) Create(ctx context.Context, userID int64, req *model.CreatePostRequest) (*model.PostView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.ParentPostID != nil && req.RepostOfID != nil {
		return nil, model.ErrRepostAndReply
	}
	if len(req.Media) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:       userID,
		Content:      req.Content,
		ParentPostID: req.ParentPostID,
		RepostOfID:   req.RepostOfID,
	}

	switch {
	case req.RepostOfID != nil:
		if len(req.Media) > 0 {
			return nil, model.ErrRepostMedia
		}
		if err := s.snapshot(ctx, post, *req.RepostOfID); err != nil {
			return nil, err
		}
	default:
		if strings.TrimSpace(req.Content) == "" && len(req.Media) == 0 {
			return nil, model.ErrEmptyPost
		}
		if req.ParentPostID != nil {
			exists, err := s.postRepo.Exists(ctx, *req.ParentPostID)
			if err != nil {
				return nil, fmt.Errorf("check parent post: %w", err)
			}
			if !exists {
				return nil, model.ErrPostNotFound
			}
		}
		for _, upload := range req.Media {
			stored, err := s.media.Save(ctx, upload, model.MediaKindPost)
			if err != nil {
				s.discardMedia(ctx, post)
				return nil, err
			}
			post.Media = append(post.Media, model.PostMedia{
				FileKey:   stored.Key,
				FileURL:   stored.URL,
				MediaType: stored.MediaType,
			})
		}
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.discardMedia(ctx, post)
		return nil, err
	}
	post.Author = author.Summary()

	if post.IsRoot() {
		s.feeds.InvalidateFollowers(ctx, userID)
	}

	s.logger.Info("post created",
		zap.Int64("post_id", post.ID),
		zap.Int64("user_id", userID),
		zap.Int("media", len(post.Media)))

	return s.projector.ProjectPost(ctx, post, &userID, 0)
}

// snapshot copies content and media of the original into post.
func (s *PostService) snapshot(ctx context.Context, post *model.Post, originalID int64) error {
	original, err := s.postRepo.GetByID(ctx, originalID)
	if err != nil {
		return err
	}

	post.Content = original.Content
	for _, m := range original.Media {
		copied, err := s.media.Copy(ctx, m.FileKey)
		if err != nil {
			s.discardMedia(ctx, post)
			return fmt.Errorf("copy repost media: %w", err)
		}
		post.Media = append(post.Media, model.PostMedia{
			FileKey:   copied.Key,
			FileURL:   copied.URL,
			MediaType: m.MediaType,
		})
	}
	return nil
}

func (s *PostService) discardMedia(ctx context.Context, post *model.Post) {
	keys := make([]string, len(post.Media))
	for i, m := range post.Media {
		keys[i] = m.FileKey
	}
	s.media.Delete(ctx, keys...)
}

// GetByID returns the post with its reply tree.
func (s *PostService) GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectPost(ctx, post, viewerID, s.projector.MaxDepth())
}

// GetReplies returns the direct replies of postID, oldest first.
func (s *PostService) GetReplies(ctx context.Context, postID int64, viewerID *int64) ([]*model.PostView, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return nil, model.ErrPostNotFound
	}

	replies, err := s.postRepo.GetReplies(ctx, []int64{postID})
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectPosts(ctx, replies, viewerID, s.projector.MaxDepth()-1)
}

// GetThread returns the post together with its direct replies.
func (s *PostService) GetThread(ctx context.Context, postID int64, viewerID *int64) (*model.ThreadResponse, error) {
	original, err := s.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	return &model.ThreadResponse{Original: original, Replies: original.Replies}, nil
}

// List returns a page of root posts, newest first. search matches content
// and author username.
func (s *PostService) List(ctx context.Context, search string, page model.PageRequest, viewerID *int64) (*model.PostPage, error) {
	page = page.Normalize()

	posts, count, err := s.postRepo.ListRoots(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return nil, err
	}

	views, err := s.projector.ProjectPosts(ctx, posts, viewerID, 0)
	if err != nil {
		return nil, err
	}
	return model.NewPostPage(page, count, views), nil
}

// ListByUser returns the root posts of username, or its replies when
// replies is set, newest first.
func (s *PostService) ListByUser(ctx context.Context, username string, replies bool, page model.PageRequest, viewerID *int64) ([]*model.PostView, error) {
	user, err := s.userRepo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListByUser(ctx, user.ID, replies, page.Normalize())
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectPosts(ctx, posts, viewerID, 0)
}

// Delete removes a post owned by userID together with its reply subtree
// and the files of every removed post.
func (s *PostService) Delete(ctx context.Context, postID, userID int64) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return model.ErrNotPostOwner
	}

	keys, err := s.postRepo.Delete(ctx, postID)
	if err != nil {
		return err
	}
	s.media.Delete(ctx, keys...)

	if post.IsRoot() {
		s.feeds.InvalidateFollowers(ctx, userID)
	}

	s.logger.Info("post deleted",
		zap.Int64("post_id", postID),
		zap.Int64("user_id", userID),
		zap.Int("files", len(keys)))
	return nil
}

// Like records userID liking postID.
func (s *PostService) Like(ctx context.Context, postID, userID int64) error {
	if err := s.ensureExists(ctx, postID); err != nil {
		return err
	}
	return s.likeRepo.Like(ctx, userID, postID)
}

func (s *PostService) Unlike(ctx context.Context, postID, userID int64) error {
	if err := s.ensureExists(ctx, postID); err != nil {
		return err
	}
	return s.likeRepo.Unlike(ctx, userID, postID)
}

// LikedPosts returns the posts userID liked, most recent like first.
func (s *PostService) LikedPosts(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error) {
	page = page.Normalize()

	count, err := s.likeRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids, err := s.likeRepo.GetLikedPostIDs(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views, err := s.projector.ProjectPosts(ctx, posts, &userID, 0)
	if err != nil {
		return nil, err
	}
	return model.NewPostPage(page, count, views), nil
}

func (s *PostService) ensureExists(ctx context.Context, postID int64) error {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return model.ErrPostNotFound
	}
	return nil
}
