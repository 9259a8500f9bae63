package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"monch/internal/config"
	"monch/internal/model"
	"monch/internal/transport/http/middleware"
)

// Function-field fakes: each test sets only the methods it exercises.

type fakeUserService struct {
	RegisterFn      func(ctx context.Context, req *model.RegisterRequest, avatar *model.Upload) (*model.UserView, error)
	CheckUsernameFn func(ctx context.Context, username string) (*model.CheckUsernameResponse, error)
	LoginFn         func(ctx context.Context, req *model.LoginRequest) (*model.User, error)
	WhoAmIFn        func(ctx context.Context, id int64) (*model.WhoAmIResponse, error)
	GetProfileFn    func(ctx context.Context, username string, viewerID *int64) (*model.UserView, error)
	SearchFn        func(ctx context.Context, query string, viewerID *int64) ([]*model.UserView, error)
	UpdateProfileFn func(ctx context.Context, actorID int64, username string, req *model.UpdateProfileRequest, avatar *model.Upload) (*model.UserView, error)
	DeleteAccountFn func(ctx context.Context, actorID int64, username string) error
}

func (f *fakeUserService) Register(ctx context.Context, req *model.RegisterRequest, avatar *model.Upload) (*model.UserView, error) {
	return f.RegisterFn(ctx, req, avatar)
}

func (f *fakeUserService) CheckUsername(ctx context.Context, username string) (*model.CheckUsernameResponse, error) {
	return f.CheckUsernameFn(ctx, username)
}

func (f *fakeUserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	return f.LoginFn(ctx, req)
}

func (f *fakeUserService) WhoAmI(ctx context.Context, id int64) (*model.WhoAmIResponse, error) {
	return f.WhoAmIFn(ctx, id)
}

func (f *fakeUserService) Project(_ context.Context, user *model.User, _ *int64) (*model.UserView, error) {
	return &model.UserView{ID: user.ID, Username: user.Username}, nil
}

func (f *fakeUserService) GetProfile(ctx context.Context, username string, viewerID *int64) (*model.UserView, error) {
	return f.GetProfileFn(ctx, username, viewerID)
}

func (f *fakeUserService) Search(ctx context.Context, query string, viewerID *int64) ([]*model.UserView, error) {
	return f.SearchFn(ctx, query, viewerID)
}

func (f *fakeUserService) UpdateProfile(ctx context.Context, actorID int64, username string, req *model.UpdateProfileRequest, avatar *model.Upload) (*model.UserView, error) {
	return f.UpdateProfileFn(ctx, actorID, username, req, avatar)
}

func (f *fakeUserService) DeleteAccount(ctx context.Context, actorID int64, username string) error {
	return f.DeleteAccountFn(ctx, actorID, username)
}

type fakeAuthService struct {
	GenerateTokenPairFn func(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*model.TokenPair, error)
	RefreshTokensFn     func(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error)
	LogoutFn            func(ctx context.Context, refreshTokenRaw string, access *model.AccessClaims) error
	RevokeAllFn         func(ctx context.Context, userID int64) error
}

func (f *fakeAuthService) GenerateTokenPair(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	return f.GenerateTokenPairFn(ctx, userID, deviceInfo, ipAddress)
}

func (f *fakeAuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error) {
	return f.RefreshTokensFn(ctx, refreshTokenRaw, deviceInfo, ipAddress)
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshTokenRaw string, access *model.AccessClaims) error {
	return f.LogoutFn(ctx, refreshTokenRaw, access)
}

func (f *fakeAuthService) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	return f.RevokeAllFn(ctx, userID)
}

type fakePostService struct {
	CreateFn     func(ctx context.Context, userID int64, req *model.CreatePostRequest) (*model.PostView, error)
	GetByIDFn    func(ctx context.Context, postID int64, viewerID *int64) (*model.PostView, error)
	GetRepliesFn func(ctx context.Context, postID int64, viewerID *int64) ([]*model.PostView, error)
	GetThreadFn  func(ctx context.Context, postID int64, viewerID *int64) (*model.ThreadResponse, error)
	ListFn       func(ctx context.Context, search string, page model.PageRequest, viewerID *int64) (*model.PostPage, error)
	ListByUserFn func(ctx context.Context, username string, replies bool, page model.PageRequest, viewerID *int64) ([]*model.PostView, error)
	DeleteFn     func(ctx context.Context, postID, userID int64) error
	LikeFn       func(ctx context.Context, postID, userID int64) error
	UnlikeFn     func(ctx context.Context, postID, userID int64) error
	LikedPostsFn func(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error)
}

func (f *fakePostService) Create(ctx context.Context, userID int64, req *model.CreatePostRequest) (*model.PostView, error) {
	return f.CreateFn(ctx, userID, req)
}

func (f *fakePostService) GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.PostView, error) {
	return f.GetByIDFn(ctx, postID, viewerID)
}

func (f *fakePostService) GetReplies(ctx context.Context, postID int64, viewerID *int64) ([]*model.PostView, error) {
	return f.GetRepliesFn(ctx, postID, viewerID)
}

func (f *fakePostService) GetThread(ctx context.Context, postID int64, viewerID *int64) (*model.ThreadResponse, error) {
	return f.GetThreadFn(ctx, postID, viewerID)
}

func (f *fakePostService) List(ctx context.Context, search string, page model.PageRequest, viewerID *int64) (*model.PostPage, error) {
	return f.ListFn(ctx, search, page, viewerID)
}

func (f *fakePostService) ListByUser(ctx context.Context, username string, replies bool, page model.PageRequest, viewerID *int64) ([]*model.PostView, error) {
	return f.ListByUserFn(ctx, username, replies, page, viewerID)
}

func (f *fakePostService) Delete(ctx context.Context, postID, userID int64) error {
	return f.DeleteFn(ctx, postID, userID)
}

func (f *fakePostService) Like(ctx context.Context, postID, userID int64) error {
	return f.LikeFn(ctx, postID, userID)
}

func (f *fakePostService) Unlike(ctx context.Context, postID, userID int64) error {
	return f.UnlikeFn(ctx, postID, userID)
}

func (f *fakePostService) LikedPosts(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error) {
	return f.LikedPostsFn(ctx, userID, page)
}

type fakeFollowService struct {
	ToggleFn       func(ctx context.Context, followerID int64, username string) (model.FollowStatus, error)
	IsFollowingFn  func(ctx context.Context, followerID int64, username string) (bool, error)
	GetFollowersFn func(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error)
	GetFollowingFn func(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error)
}

func (f *fakeFollowService) Toggle(ctx context.Context, followerID int64, username string) (model.FollowStatus, error) {
	return f.ToggleFn(ctx, followerID, username)
}

func (f *fakeFollowService) IsFollowing(ctx context.Context, followerID int64, username string) (bool, error) {
	return f.IsFollowingFn(ctx, followerID, username)
}

func (f *fakeFollowService) GetFollowers(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error) {
	return f.GetFollowersFn(ctx, username, viewerID)
}

func (f *fakeFollowService) GetFollowing(ctx context.Context, username string, viewerID *int64) ([]*model.UserView, error) {
	return f.GetFollowingFn(ctx, username, viewerID)
}

type fakeFeedService struct {
	GetFeedFn func(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error)
}

func (f *fakeFeedService) GetFeed(ctx context.Context, userID int64, page model.PageRequest) (*model.PostPage, error) {
	return f.GetFeedFn(ctx, userID, page)
}

// testVerifier accepts "user-<id>" style tokens from the tokens map.
type testVerifier map[string]int64

func (v testVerifier) VerifyAccessToken(_ context.Context, token string) (*model.AccessClaims, error) {
	id, ok := v[token]
	if !ok {
		return nil, model.ErrAccessTokenInvalid
	}
	return &model.AccessClaims{UserID: id, TokenID: token, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

var verifier = testVerifier{"alice-token": 1, "bob-token": 2}

func testConfig() *config.Config {
	return &config.Config{AccessTokenMaxAge: 900, RefreshTokenMaxAge: 3600}
}

// route mounts h on a chi router with optional or required auth so URL
// params and the viewer are resolved as in production.
func route(method, pattern string, h http.HandlerFunc, requireAuth bool) http.Handler {
	r := chi.NewRouter()
	if requireAuth {
		r.Use(middleware.AuthMiddleware(verifier))
	} else {
		r.Use(middleware.OptionalAuthMiddleware(verifier))
	}
	r.Method(method, pattern, h)
	return r
}

func do(t *testing.T, h http.Handler, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// doWithCookie posts body with an optional refresh token cookie.
func doWithCookie(t *testing.T, h http.Handler, target, refreshCookie string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", "application/json")
	if refreshCookie != "" {
		req.AddCookie(&http.Cookie{Name: model.RefreshTokenCookie, Value: refreshCookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, rec).Error.Code
}

var nopLogger = zap.NewNop()
