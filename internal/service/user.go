package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"monch/internal/model"
	"monch/internal/repository"
	"monch/internal/validation"
)

// UserService handles business logic for user operations
type UserService struct {
	repo       repository.UserRepository
	followRepo repository.FollowRepository
	media      *MediaService
	projector  *Projector
	feeds      *FeedService
	logger     *zap.Logger
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	media *MediaService,
	projector *Projector,
	feeds *FeedService,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		followRepo: followRepo,
		media:      media,
		projector:  projector,
		feeds:      feeds,
		logger:     logger,
	}
}

// Register creates a new user account. The avatar is optional and is
// processed before the row is written; it is removed again if the insert fails.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest, avatar *model.Upload) (*model.UserView, error) {
	req.Username = validation.NormalizeUsername(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	// Check if username already exists
	exists, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		PasswordHashed: string(hashedPassword),
		DisplayName:    req.DisplayName,
	}

	if avatar != nil {
		stored, err := s.media.Save(ctx, *avatar, model.MediaKindAvatar)
		if err != nil {
			return nil, err
		}
		user.AvatarKey = &stored.Key
		user.AvatarURL = &stored.URL
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if user.AvatarKey != nil {
			s.media.Delete(ctx, *user.AvatarKey)
		}
		if errors.Is(err, model.ErrUsernameExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return s.projector.ProjectUser(ctx, user, nil)
}

// CheckUsername reports whether a username could be registered right now.
// Malformed names are reported as unavailable.
func (s *UserService) CheckUsername(ctx context.Context, username string) (*model.CheckUsernameResponse, error) {
	username = validation.NormalizeUsername(username)
	resp := &model.CheckUsernameResponse{Username: username}
	if !validation.IsValidUsername(username) {
		return resp, nil
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	resp.Available = !exists
	return resp, nil
}

// Login authenticates a user with username and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByUsername(ctx, validation.NormalizeUsername(req.Username))
	if err != nil {
		// Don't reveal whether username exists or not
		return nil, model.ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password))
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) WhoAmI(ctx context.Context, id int64) (*model.WhoAmIResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.WhoAmIResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		Avatar:      user.AvatarURL,
	}, nil
}

func (s *UserService) Project(ctx context.Context, user *model.User, viewerID *int64) (*model.UserView, error) {
	return s.projector.ProjectUser(ctx, user, viewerID)
}

// GetProfile retrieves a user's profile as seen by viewerID.
func (s *UserService) GetProfile(ctx context.Context, username string, viewerID *int64) (*model.UserView, error) {
	user, err := s.repo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectUser(ctx, user, viewerID)
}

// Search matches the query against usernames and display names.
func (s *UserService) Search(ctx context.Context, query string, viewerID *int64) ([]*model.UserView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.UserView{}, nil
	}

	users, err := s.repo.Search(ctx, query, model.MaxSearchResults)
	if err != nil {
		return nil, err
	}
	return s.projector.ProjectUsers(ctx, users, viewerID)
}

// UpdateProfile edits the profile of username on behalf of actorID.
// A new avatar replaces the old one, whose file is removed once the row
// points at the new file.
func (s *UserService) UpdateProfile(ctx context.Context, actorID int64, username string, req *model.UpdateProfileRequest, avatar *model.Upload) (*model.UserView, error) {
	user, err := s.ownedUser(ctx, actorID, username)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &trimmed
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	oldKey := user.AvatarKey
	var newKey *string
	if avatar != nil {
		stored, err := s.media.Save(ctx, *avatar, model.MediaKindAvatar)
		if err != nil {
			return nil, err
		}
		newKey = &stored.Key
		user.AvatarKey = &stored.Key
		user.AvatarURL = &stored.URL
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if newKey != nil {
			s.media.Delete(ctx, *newKey)
		}
		return nil, err
	}

	if newKey != nil && oldKey != nil {
		s.media.Delete(ctx, *oldKey)
	}

	return s.projector.ProjectUser(ctx, user, &actorID)
}

// DeleteAccount removes username and everything it owns on behalf of actorID.
// Followers lose the user's posts from their feeds.
func (s *UserService) DeleteAccount(ctx context.Context, actorID int64, username string) error {
	user, err := s.ownedUser(ctx, actorID, username)
	if err != nil {
		return err
	}

	followerIDs, err := s.followRepo.GetFollowerIDs(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load followers: %w", err)
	}

	keys, err := s.repo.Delete(ctx, user.ID)
	if err != nil {
		return err
	}

	s.media.Delete(ctx, keys...)
	s.feeds.Invalidate(ctx, followerIDs...)

	s.logger.Info("user deleted", zap.Int64("user_id", user.ID), zap.Int("files", len(keys)))
	return nil
}

func (s *UserService) ownedUser(ctx context.Context, actorID int64, username string) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, validation.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if user.ID != actorID {
		return nil, model.ErrForbidden
	}
	return user, nil
}
