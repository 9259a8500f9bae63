package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"monch/internal/handler"
	"monch/internal/httputil"
	"monch/internal/metrics"
	mw "monch/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	FollowHandler *handler.FollowHandler
	FeedHandler   *handler.FeedHandler
	PostHandler   *handler.PostHandler

	Verifier    mw.TokenVerifier
	RateLimiter *mw.RateLimiter
	Logger      *zap.Logger

	// TrustProxy rewrites the client address from forwarding headers.
	TrustProxy bool

	// MediaDir is served under MediaPath when files are kept on local disk.
	MediaDir  string
	MediaPath string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(mw.RequestLogger(cfg.Logger))
	r.Use(mw.Metrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	if cfg.MediaDir != "" && strings.HasPrefix(cfg.MediaPath, "/") {
		prefix := strings.TrimSuffix(cfg.MediaPath, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.MediaDir))))
	}

	// Public routes; viewer-relative fields are filled when a valid token is present
	r.Group(func(r chi.Router) {
		r.Use(mw.OptionalAuthMiddleware(cfg.Verifier))

		r.With(cfg.RateLimiter.Limit("login")).Post("/login", cfg.AuthHandler.Login)
		r.Post("/token/refresh", cfg.AuthHandler.Refresh)
		r.Post("/logout", cfg.AuthHandler.Logout)

		r.With(cfg.RateLimiter.Limit("register")).Post("/users/register", cfg.UserHandler.Register)
		r.Get("/users/check-username", cfg.UserHandler.CheckUsername)
		r.Get("/users/search", cfg.UserHandler.Search)
		r.Get("/users/{username}", cfg.UserHandler.GetProfile)
		r.Get("/users/{username}/posts", cfg.UserHandler.Posts)
		r.Get("/users/{username}/replies", cfg.UserHandler.Replies)
		r.Get("/users/{username}/followers", cfg.FollowHandler.GetFollowers)
		r.Get("/users/{username}/following", cfg.FollowHandler.GetFollowing)

		r.Get("/posts", cfg.PostHandler.List)
		r.Get("/posts/{id}", cfg.PostHandler.GetByID)
		r.Get("/posts/{id}/replies", cfg.PostHandler.Replies)
		r.Get("/posts/{id}/thread", cfg.PostHandler.Thread)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Verifier))

		r.Get("/whoami", cfg.AuthHandler.WhoAmI)
		r.Post("/logout-all", cfg.AuthHandler.LogoutAll)

		r.Patch("/users/{username}", cfg.UserHandler.UpdateProfile)
		r.Delete("/users/{username}", cfg.UserHandler.DeleteAccount)

		r.Post("/posts", cfg.PostHandler.Create)
		r.Get("/posts/following", cfg.FeedHandler.GetFeed)
		r.Delete("/posts/{id}", cfg.PostHandler.Delete)
		r.Post("/posts/{id}/like", cfg.PostHandler.Like)
		r.Delete("/posts/{id}/like", cfg.PostHandler.Unlike)

		r.Post("/follows/toggle", cfg.FollowHandler.Toggle)
		r.Get("/follows/is_following", cfg.FollowHandler.IsFollowing)

		r.Get("/likes/liked-posts", cfg.PostHandler.LikedPosts)
	})

	return r
}
