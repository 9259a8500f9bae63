package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"monch/internal/cache"
	"monch/internal/config"
	"monch/internal/database"
	"monch/internal/handler"
	"monch/internal/logger"
	"monch/internal/redis"
	"monch/internal/repository"
	"monch/internal/service"
	"monch/internal/storage"
	mw "monch/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// 3. Redis is optional; without it the caches degrade to no-ops
	var rdb *goredis.Client
	feedCache := cache.FeedCache(cache.NopFeedCache{})
	denylist := cache.TokenDenylist(cache.NopTokenDenylist{})
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client.Client
		feedCache = cache.NewFeedCache(rdb, log)
		denylist = cache.NewTokenDenylist(rdb)
	} else {
		log.Warn("REDIS_URL not set, feed cache and token denylist disabled")
	}

	// 4. File storage
	var store storage.ObjectStore
	var mediaDir string
	if cfg.R2Enabled() {
		r2, err := storage.NewR2Store(ctx, cfg)
		if err != nil {
			return err
		}
		store = r2
		log.Info("using R2 object storage", zap.String("bucket", cfg.R2BucketName))
	} else {
		local, err := storage.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return err
		}
		store = local
		mediaDir = local.Dir()
		log.Info("using local media storage", zap.String("dir", mediaDir))
	}

	// 5. Repositories, services, handlers
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	projector := service.NewProjector(postRepo, likeRepo, userRepo, followRepo, cfg.ThreadMaxDepth)
	mediaService := service.NewMediaService(store, log)
	feedService := service.NewFeedService(feedCache, postRepo, followRepo, projector, log)
	authService := service.NewAuthService(refreshTokenRepo, denylist, cfg, log)
	userService := service.NewUserService(userRepo, followRepo, mediaService, projector, feedService, log)
	followService := service.NewFollowService(followRepo, userRepo, projector, feedService, log)
	postService := service.NewPostService(postRepo, userRepo, likeRepo, mediaService, projector, feedService, log)

	authService.PurgeExpired(ctx)

	router := NewRouter(RouterConfig{
		AuthHandler:   handler.NewAuthHandler(userService, authService, cfg, log),
		UserHandler:   handler.NewUserHandler(userService, postService, log),
		FollowHandler: handler.NewFollowHandler(followService, log),
		FeedHandler:   handler.NewFeedHandler(feedService, log),
		PostHandler:   handler.NewPostHandler(postService, log),
		Verifier:      authService,
		RateLimiter:   mw.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, log),
		Logger:        log,
		TrustProxy:    cfg.TrustProxy,
		MediaDir:      mediaDir,
		MediaPath:     cfg.MediaBaseURL,
	})

	// 6. Serve until interrupted
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
