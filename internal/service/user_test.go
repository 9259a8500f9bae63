package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"monch/internal/model"
)

// =============================================================================
// REGISTER TESTS
// =============================================================================

func TestUserService_Register_Success(t *testing.T) {
	// ARRANGE
	d := newTestDeps()
	d.users.createFn = func(ctx context.Context, user *model.User) error {
		// Simulate database setting ID and timestamps
		user.ID = 1
		user.CreatedAt = time.Now()
		user.UpdatedAt = time.Now()
		return nil
	}
	svc := d.userService()

	req := &model.RegisterRequest{
		Username:    "  TestUser ",
		Password:    "securepassword123",
		DisplayName: "Test User",
	}

	// ACT
	view, err := svc.Register(context.Background(), req, nil)

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if view.Username != "testuser" {
		t.Errorf("username = %q, want %q", view.Username, "testuser")
	}
	if view.DisplayName != "Test User" {
		t.Errorf("display_name = %q, want %q", view.DisplayName, "Test User")
	}
	if view.AvatarURL != nil {
		t.Errorf("avatar_url = %v, want nil", *view.AvatarURL)
	}

	if len(d.users.createCalls) != 1 {
		t.Fatalf("Create called %d times, want 1", len(d.users.createCalls))
	}
	stored := d.users.createCalls[0].User

	// Verify password was hashed (not stored in plain text!)
	if stored.PasswordHashed == req.Password {
		t.Error("password should be hashed, not stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHashed), []byte(req.Password)); err != nil {
		t.Error("password hash should be valid bcrypt hash")
	}
}

func TestUserService_Register_UsernameExists(t *testing.T) {
	d := newTestDeps()
	d.users.existsByUsernameFn = func(ctx context.Context, username string) (bool, error) {
		return true, nil
	}
	svc := d.userService()

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "taken",
		Password: "password123",
	}, nil)

	if !errors.Is(err, model.ErrUsernameExists) {
		t.Errorf("error = %v, want ErrUsernameExists", err)
	}
	if len(d.users.createCalls) != 0 {
		t.Error("Create should not be called when username exists")
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name      string
		req       model.RegisterRequest
		wantField string
	}{
		{
			name:      "username too short",
			req:       model.RegisterRequest{Username: "ab", Password: "password123"},
			wantField: "username",
		},
		{
			name:      "username with invalid characters",
			req:       model.RegisterRequest{Username: "bad name!", Password: "password123"},
			wantField: "username",
		},
		{
			name:      "missing password",
			req:       model.RegisterRequest{Username: "alice"},
			wantField: "password",
		},
		{
			name:      "password too short",
			req:       model.RegisterRequest{Username: "alice", Password: "short"},
			wantField: "password",
		},
		{
			name:      "display name too long",
			req:       model.RegisterRequest{Username: "alice", Password: "password123", DisplayName: "abcdefghijklmnopqrstuvwxyz"},
			wantField: "display_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			svc := d.userService()

			req := tt.req
			_, err := svc.Register(context.Background(), &req, nil)

			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *model.ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
			if len(d.users.createCalls) != 0 {
				t.Error("Create should not be called for invalid input")
			}
		})
	}
}

func TestUserService_Register_WithAvatar(t *testing.T) {
	d := newTestDeps()
	d.users.createFn = func(ctx context.Context, user *model.User) error {
		user.ID = 7
		return nil
	}
	svc := d.userService()

	avatar := &model.Upload{Filename: "me.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 800, 600)}
	view, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, avatar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := d.users.createCalls[0].User
	if stored.AvatarKey == nil {
		t.Fatal("expected avatar key to be set")
	}
	if _, ok := d.store.objects[*stored.AvatarKey]; !ok {
		t.Errorf("avatar %q not written to storage", *stored.AvatarKey)
	}
	if view.AvatarURL == nil || *view.AvatarURL != d.store.URL(*stored.AvatarKey) {
		t.Errorf("avatar_url = %v, want store url", view.AvatarURL)
	}
}

func TestUserService_Register_CreateErrorRemovesAvatar(t *testing.T) {
	d := newTestDeps()
	d.users.createFn = func(ctx context.Context, user *model.User) error {
		return model.ErrUsernameExists // lost a race with a concurrent registration
	}
	svc := d.userService()

	avatar := &model.Upload{Filename: "me.png", Data: pngBytes(t, 50, 50)}
	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, avatar)

	if !errors.Is(err, model.ErrUsernameExists) {
		t.Fatalf("error = %v, want ErrUsernameExists", err)
	}
	if len(d.store.objects) != 0 {
		t.Errorf("expected uploaded avatar to be removed, %d objects left", len(d.store.objects))
	}
}

func TestUserService_Register_InvalidAvatar(t *testing.T) {
	d := newTestDeps()
	svc := d.userService()

	avatar := &model.Upload{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, avatar)

	if !errors.Is(err, model.ErrInvalidImageType) {
		t.Errorf("error = %v, want ErrInvalidImageType", err)
	}
	if len(d.users.createCalls) != 0 {
		t.Error("Create should not be called when the avatar is rejected")
	}
}

// =============================================================================
// CHECK USERNAME TESTS
// =============================================================================

func TestUserService_CheckUsername(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		exists        bool
		wantUsername  string
		wantAvailable bool
	}{
		{name: "free", username: "alice", wantUsername: "alice", wantAvailable: true},
		{name: "taken", username: "alice", exists: true, wantUsername: "alice", wantAvailable: false},
		{name: "normalized", username: " Alice ", wantUsername: "alice", wantAvailable: true},
		{name: "malformed", username: "a!", wantUsername: "a!", wantAvailable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.users.existsByUsernameFn = func(ctx context.Context, username string) (bool, error) {
				return tt.exists, nil
			}

			resp, err := d.userService().CheckUsername(context.Background(), tt.username)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Username != tt.wantUsername {
				t.Errorf("username = %q, want %q", resp.Username, tt.wantUsername)
			}
			if resp.Available != tt.wantAvailable {
				t.Errorf("available = %v, want %v", resp.Available, tt.wantAvailable)
			}
		})
	}
}

// =============================================================================
// LOGIN TESTS - Table-Driven
// =============================================================================

func TestUserService_Login(t *testing.T) {
	validPassword := "correctpassword"
	validHash, _ := bcrypt.GenerateFromPassword([]byte(validPassword), bcrypt.MinCost)

	testUser := &model.User{
		ID:             1,
		Username:       "testuser",
		PasswordHashed: string(validHash),
	}

	tests := []struct {
		name          string
		username      string
		password      string
		mockGetByUser func(ctx context.Context, username string) (*model.User, error)
		wantErr       error
		wantUser      bool
	}{
		{
			name:     "successful login",
			username: "testuser",
			password: validPassword,
			mockGetByUser: func(ctx context.Context, username string) (*model.User, error) {
				return testUser, nil
			},
			wantUser: true,
		},
		{
			name:     "username is case insensitive",
			username: "TestUser",
			password: validPassword,
			mockGetByUser: func(ctx context.Context, username string) (*model.User, error) {
				if username != "testuser" {
					return nil, model.ErrUserNotFound
				}
				return testUser, nil
			},
			wantUser: true,
		},
		{
			name:     "user not found",
			username: "nonexistent",
			password: "anypassword",
			mockGetByUser: func(ctx context.Context, username string) (*model.User, error) {
				return nil, model.ErrUserNotFound
			},
			wantErr: model.ErrInvalidCredentials, // Don't reveal user doesn't exist
		},
		{
			name:     "wrong password",
			username: "testuser",
			password: "wrongpassword",
			mockGetByUser: func(ctx context.Context, username string) (*model.User, error) {
				return testUser, nil
			},
			wantErr: model.ErrInvalidCredentials,
		},
		{
			name:     "database error",
			username: "testuser",
			password: validPassword,
			mockGetByUser: func(ctx context.Context, username string) (*model.User, error) {
				return nil, errors.New("database error")
			},
			wantErr: model.ErrInvalidCredentials, // Don't reveal internal errors
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.users.getByUsernameFn = tt.mockGetByUser
			svc := d.userService()

			user, err := svc.Login(context.Background(), &model.LoginRequest{
				Username: tt.username,
				Password: tt.password,
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if tt.wantUser && user == nil {
				t.Error("expected user, got nil")
			}
			if !tt.wantUser && user != nil {
				t.Error("expected nil user")
			}
		})
	}
}

// =============================================================================
// PROFILE TESTS
// =============================================================================

func TestUserService_GetProfile(t *testing.T) {
	tests := []struct {
		name            string
		viewerID        *int64
		viewerFollows   bool
		wantIsFollowing bool
	}{
		{name: "anonymous viewer", viewerID: nil, wantIsFollowing: false},
		{name: "follower", viewerID: int64Ptr(2), viewerFollows: true, wantIsFollowing: true},
		{name: "non follower", viewerID: int64Ptr(2), viewerFollows: false, wantIsFollowing: false},
		{name: "self", viewerID: int64Ptr(1), viewerFollows: true, wantIsFollowing: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
				return &model.User{ID: 1, Username: username}, nil
			}
			d.users.getStatsFn = func(ctx context.Context, ids []int64) (map[int64]model.UserStats, error) {
				return map[int64]model.UserStats{1: {UserID: 1, FollowersCount: 3, FollowingCount: 4, PostsCount: 5}}, nil
			}
			d.follows.checkFollowsFn = func(ctx context.Context, followerID int64, ids []int64) (map[int64]bool, error) {
				return map[int64]bool{1: tt.viewerFollows}, nil
			}

			view, err := d.userService().GetProfile(context.Background(), "alice", tt.viewerID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.IsFollowing != tt.wantIsFollowing {
				t.Errorf("is_following = %v, want %v", view.IsFollowing, tt.wantIsFollowing)
			}
			if view.FollowersCount != 3 || view.FollowingCount != 4 || view.PostsCount != 5 {
				t.Errorf("counters = %d/%d/%d, want 3/4/5", view.FollowersCount, view.FollowingCount, view.PostsCount)
			}
		})
	}
}

func TestUserService_UpdateProfile_NotSelf(t *testing.T) {
	d := newTestDeps()
	d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
		return &model.User{ID: 1, Username: username}, nil
	}
	d.users.updateProfileFn = func(ctx context.Context, user *model.User) error {
		t.Error("UpdateProfile should not be called")
		return nil
	}

	_, err := d.userService().UpdateProfile(context.Background(), 2, "alice", &model.UpdateProfileRequest{Bio: stringPtr("hi")}, nil)

	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestUserService_UpdateProfile_ReplacesAvatar(t *testing.T) {
	d := newTestDeps()
	oldKey := "avatars/old.jpg"
	d.store.objects[oldKey] = []byte("old")

	d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
		return &model.User{ID: 1, Username: username, DisplayName: "Alice", AvatarKey: stringPtr(oldKey)}, nil
	}
	var saved *model.User
	d.users.updateProfileFn = func(ctx context.Context, user *model.User) error {
		saved = user
		return nil
	}

	view, err := d.userService().UpdateProfile(context.Background(), 1, "alice", &model.UpdateProfileRequest{
		Bio: stringPtr("new bio"),
	}, &model.Upload{Data: jpegBytes(t, 100, 100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Bio != "new bio" {
		t.Errorf("bio = %q, want %q", view.Bio, "new bio")
	}
	if view.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want unchanged", view.DisplayName)
	}
	if saved.AvatarKey == nil || *saved.AvatarKey == oldKey {
		t.Fatalf("avatar key not replaced: %v", saved.AvatarKey)
	}
	if _, ok := d.store.objects[oldKey]; ok {
		t.Error("old avatar should be deleted")
	}
	if _, ok := d.store.objects[*saved.AvatarKey]; !ok {
		t.Error("new avatar should be stored")
	}
}

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	d := newTestDeps()
	d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
		return &model.User{ID: 1, Username: username}, nil
	}

	long := make([]byte, model.MaxBioLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := d.userService().UpdateProfile(context.Background(), 1, "alice", &model.UpdateProfileRequest{
		Bio: stringPtr(string(long)),
	}, nil)

	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "bio" {
		t.Errorf("error = %v, want validation error on bio", err)
	}
}

func TestUserService_DeleteAccount(t *testing.T) {
	d := newTestDeps()
	d.store.objects["avatars/a.jpg"] = []byte("a")
	d.store.objects["posts/p.jpg"] = []byte("p")
	d.cache.feeds[5] = []int64{1}
	d.cache.feeds[6] = []int64{1}

	d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
		return &model.User{ID: 1, Username: username}, nil
	}
	d.follows.getFollowerIDsFn = func(ctx context.Context, userID int64) ([]int64, error) {
		return []int64{5, 6}, nil
	}
	d.users.deleteFn = func(ctx context.Context, userID int64) ([]string, error) {
		return []string{"posts/p.jpg", "avatars/a.jpg"}, nil
	}

	if err := d.userService().DeleteAccount(context.Background(), 1, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.store.objects) != 0 {
		t.Errorf("expected all files removed, %d left", len(d.store.objects))
	}
	if len(d.cache.feeds) != 0 {
		t.Errorf("expected follower feeds invalidated, %d left", len(d.cache.feeds))
	}
}

func TestUserService_DeleteAccount_NotSelf(t *testing.T) {
	d := newTestDeps()
	d.users.getByUsernameFn = func(ctx context.Context, username string) (*model.User, error) {
		return &model.User{ID: 1, Username: username}, nil
	}

	err := d.userService().DeleteAccount(context.Background(), 2, "alice")
	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestUserService_Search_EmptyQuery(t *testing.T) {
	d := newTestDeps()
	d.users.searchFn = func(ctx context.Context, query string, limit int) ([]model.User, error) {
		t.Error("Search should not hit the repository for an empty query")
		return nil, nil
	}

	users, err := d.userService().Search(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("got %d users, want 0", len(users))
	}
}
