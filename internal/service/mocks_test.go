package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"monch/internal/model"
	"monch/internal/storage"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Services depend on repository interfaces, so each test swaps in a mock whose
// function fields return controlled responses. A nil field falls back to a
// neutral default.

type mockUserRepository struct {
	createFn           func(ctx context.Context, user *model.User) error
	getByIDFn          func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*model.User, error)
	existsByUsernameFn func(ctx context.Context, username string) (bool, error)
	searchFn           func(ctx context.Context, query string, limit int) ([]model.User, error)
	updateProfileFn    func(ctx context.Context, user *model.User) error
	deleteFn           func(ctx context.Context, userID int64) ([]string, error)
	getStatsFn         func(ctx context.Context, userIDs []int64) (map[int64]model.UserStats, error)

	// Track calls for assertions
	createCalls []createCall
}

type createCall struct {
	User *model.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, createCall{User: user})
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return []model.User{}, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, userID int64) ([]string, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserRepository) GetStats(ctx context.Context, userIDs []int64) (map[int64]model.UserStats, error) {
	if m.getStatsFn != nil {
		return m.getStatsFn(ctx, userIDs)
	}
	return map[int64]model.UserStats{}, nil
}

type mockFollowRepository struct {
	toggleFn         func(ctx context.Context, followerID, followingID int64) (model.FollowStatus, error)
	existsFn         func(ctx context.Context, followerID, followingID int64) (bool, error)
	getFollowersFn   func(ctx context.Context, userID int64) ([]model.User, error)
	getFollowingFn   func(ctx context.Context, userID int64) ([]model.User, error)
	checkFollowsFn   func(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]bool, error)
	getFollowerIDsFn func(ctx context.Context, userID int64) ([]int64, error)
}

func (m *mockFollowRepository) Toggle(ctx context.Context, followerID, followingID int64) (model.FollowStatus, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, followerID, followingID)
	}
	return model.FollowStatusFollowed, nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, followerID, followingID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, followerID, followingID)
	}
	return false, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID int64) ([]model.User, error) {
	if m.getFollowersFn != nil {
		return m.getFollowersFn(ctx, userID)
	}
	return []model.User{}, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID int64) ([]model.User, error) {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, userID)
	}
	return []model.User{}, nil
}

func (m *mockFollowRepository) CheckFollows(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]bool, error) {
	if m.checkFollowsFn != nil {
		return m.checkFollowsFn(ctx, followerID, followingIDs)
	}
	return map[int64]bool{}, nil
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.getFollowerIDsFn != nil {
		return m.getFollowerIDsFn(ctx, userID)
	}
	return nil, nil
}

type mockLikeRepository struct {
	likeFn            func(ctx context.Context, userID, postID int64) error
	unlikeFn          func(ctx context.Context, userID, postID int64) error
	countByPostsFn    func(ctx context.Context, postIDs []int64) (map[int64]int, error)
	checkLikesFn      func(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	getLikedPostIDsFn func(ctx context.Context, userID int64, page model.PageRequest) ([]int64, error)
	countByUserFn     func(ctx context.Context, userID int64) (int, error)

	checkLikesCalls int
}

func (m *mockLikeRepository) Like(ctx context.Context, userID, postID int64) error {
	if m.likeFn != nil {
		return m.likeFn(ctx, userID, postID)
	}
	return nil
}

func (m *mockLikeRepository) Unlike(ctx context.Context, userID, postID int64) error {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, userID, postID)
	}
	return nil
}

func (m *mockLikeRepository) CountByPosts(ctx context.Context, postIDs []int64) (map[int64]int, error) {
	if m.countByPostsFn != nil {
		return m.countByPostsFn(ctx, postIDs)
	}
	return map[int64]int{}, nil
}

func (m *mockLikeRepository) CheckLikes(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	m.checkLikesCalls++
	if m.checkLikesFn != nil {
		return m.checkLikesFn(ctx, userID, postIDs)
	}
	return map[int64]bool{}, nil
}

func (m *mockLikeRepository) GetLikedPostIDs(ctx context.Context, userID int64, page model.PageRequest) ([]int64, error) {
	if m.getLikedPostIDsFn != nil {
		return m.getLikedPostIDsFn(ctx, userID, page)
	}
	return nil, nil
}

func (m *mockLikeRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	if m.countByUserFn != nil {
		return m.countByUserFn(ctx, userID)
	}
	return 0, nil
}

type mockPostRepository struct {
	createFn           func(ctx context.Context, post *model.Post) error
	getByIDFn          func(ctx context.Context, postID int64) (*model.Post, error)
	getByIDsFn         func(ctx context.Context, postIDs []int64) ([]model.Post, error)
	existsFn           func(ctx context.Context, postID int64) (bool, error)
	deleteFn           func(ctx context.Context, postID int64) ([]string, error)
	listRootsFn        func(ctx context.Context, search string, page model.PageRequest) ([]model.Post, int, error)
	listByUserFn       func(ctx context.Context, userID int64, replies bool, page model.PageRequest) ([]model.Post, error)
	getRepliesFn       func(ctx context.Context, parentIDs []int64) ([]model.Post, error)
	countRepliesFn     func(ctx context.Context, postIDs []int64) (map[int64]int, error)
	getViewerRepostsFn func(ctx context.Context, userID int64, postIDs []int64) (map[int64]int64, error)
	getRefsFn          func(ctx context.Context, postIDs []int64) (map[int64]model.PostRef, error)
	getFeedPostIDsFn   func(ctx context.Context, userID int64, offset, limit int) ([]int64, error)
	countFeedFn        func(ctx context.Context, userID int64) (int, error)

	getRepliesCalls     int
	getFeedPostIDsCalls int
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, postIDs)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, postID)
	}
	return false, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, postID int64) ([]string, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, postID)
	}
	return nil, nil
}

func (m *mockPostRepository) ListRoots(ctx context.Context, search string, page model.PageRequest) ([]model.Post, int, error) {
	if m.listRootsFn != nil {
		return m.listRootsFn(ctx, search, page)
	}
	return []model.Post{}, 0, nil
}

func (m *mockPostRepository) ListByUser(ctx context.Context, userID int64, replies bool, page model.PageRequest) ([]model.Post, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, replies, page)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) GetReplies(ctx context.Context, parentIDs []int64) ([]model.Post, error) {
	m.getRepliesCalls++
	if m.getRepliesFn != nil {
		return m.getRepliesFn(ctx, parentIDs)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) CountReplies(ctx context.Context, postIDs []int64) (map[int64]int, error) {
	if m.countRepliesFn != nil {
		return m.countRepliesFn(ctx, postIDs)
	}
	return map[int64]int{}, nil
}

func (m *mockPostRepository) GetViewerReposts(ctx context.Context, userID int64, postIDs []int64) (map[int64]int64, error) {
	if m.getViewerRepostsFn != nil {
		return m.getViewerRepostsFn(ctx, userID, postIDs)
	}
	return map[int64]int64{}, nil
}

func (m *mockPostRepository) GetRefs(ctx context.Context, postIDs []int64) (map[int64]model.PostRef, error) {
	if m.getRefsFn != nil {
		return m.getRefsFn(ctx, postIDs)
	}
	return map[int64]model.PostRef{}, nil
}

func (m *mockPostRepository) GetFeedPostIDs(ctx context.Context, userID int64, offset, limit int) ([]int64, error) {
	m.getFeedPostIDsCalls++
	if m.getFeedPostIDsFn != nil {
		return m.getFeedPostIDsFn(ctx, userID, offset, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) CountFeed(ctx context.Context, userID int64) (int, error) {
	if m.countFeedFn != nil {
		return m.countFeedFn(ctx, userID)
	}
	return 0, nil
}

type mockRefreshTokenRepository struct {
	createFn           func(ctx context.Context, token *model.RefreshToken) error
	findByTokenHashFn  func(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	rotateFn           func(ctx context.Context, oldID string, next *model.RefreshToken) error
	revokeFn           func(ctx context.Context, id string) error
	revokeAllForUserFn func(ctx context.Context, userID int64) error

	revokeAllCalls int
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	if m.findByTokenHashFn != nil {
		return m.findByTokenHashFn(ctx, tokenHash)
	}
	return nil, model.ErrRefreshTokenNotFound
}

func (m *mockRefreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	if m.rotateFn != nil {
		return m.rotateFn(ctx, oldID, next)
	}
	return nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	m.revokeAllCalls++
	if m.revokeAllForUserFn != nil {
		return 1, m.revokeAllForUserFn(ctx, userID)
	}
	return 1, nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// =============================================================================
// FAKE STORE AND CACHES
// =============================================================================

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[srcKey]
	if !ok {
		return storage.ErrObjectNotFound
	}
	s.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) URL(key string) string {
	return "https://media.test/" + key
}

type fakeFeedCache struct {
	window      int
	feeds       map[int64][]int64
	invalidated []int64
	pageErr     error
}

func newFakeFeedCache(window int) *fakeFeedCache {
	return &fakeFeedCache{window: window, feeds: map[int64][]int64{}}
}

func (c *fakeFeedCache) Page(ctx context.Context, userID int64, offset, limit int) ([]int64, bool, error) {
	if c.pageErr != nil {
		return nil, false, c.pageErr
	}
	ids, ok := c.feeds[userID]
	if !ok {
		return nil, false, nil
	}
	if offset >= len(ids) {
		return []int64{}, true, nil
	}
	return ids[offset:min(offset+limit, len(ids))], true, nil
}

func (c *fakeFeedCache) Store(ctx context.Context, userID int64, postIDs []int64) error {
	if len(postIDs) == 0 {
		delete(c.feeds, userID)
		return nil
	}
	c.feeds[userID] = append([]int64(nil), postIDs...)
	return nil
}

func (c *fakeFeedCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	for _, id := range userIDs {
		delete(c.feeds, id)
	}
	c.invalidated = append(c.invalidated, userIDs...)
	return nil
}

func (c *fakeFeedCache) Window() int { return c.window }

type fakeDenylist struct {
	revoked map[string]time.Duration
}

func (d *fakeDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if d.revoked == nil {
		d.revoked = map[string]time.Duration{}
	}
	d.revoked[tokenID] = ttl
	return nil
}

func (d *fakeDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok := d.revoked[tokenID]
	return ok, nil
}

// =============================================================================
// FIXTURES
// =============================================================================

type testDeps struct {
	users   *mockUserRepository
	follows *mockFollowRepository
	likes   *mockLikeRepository
	posts   *mockPostRepository
	store   *memStore
	cache   *fakeFeedCache

	media     *MediaService
	projector *Projector
	feeds     *FeedService
}

func newTestDeps() *testDeps {
	d := &testDeps{
		users:   &mockUserRepository{},
		follows: &mockFollowRepository{},
		likes:   &mockLikeRepository{},
		posts:   &mockPostRepository{},
		store:   newMemStore(),
		cache:   newFakeFeedCache(100),
	}
	logger := zap.NewNop()
	d.media = NewMediaService(d.store, logger)
	d.projector = NewProjector(d.posts, d.likes, d.users, d.follows, 8)
	d.feeds = NewFeedService(d.cache, d.posts, d.follows, d.projector, logger)
	return d
}

func (d *testDeps) userService() *UserService {
	return NewUserService(d.users, d.follows, d.media, d.projector, d.feeds, zap.NewNop())
}

func (d *testDeps) postService() *PostService {
	return NewPostService(d.posts, d.users, d.likes, d.media, d.projector, d.feeds, zap.NewNop())
}

func (d *testDeps) followService() *FollowService {
	return NewFollowService(d.follows, d.users, d.projector, d.feeds, zap.NewNop())
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

func testPost(id, userID int64, parentID *int64) model.Post {
	return model.Post{
		ID:           id,
		UserID:       userID,
		Content:      "post",
		ParentPostID: parentID,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
		Author:       model.UserSummary{ID: userID, Username: "user"},
	}
}
