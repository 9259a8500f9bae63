package handler

import (
	"net/http"

	"go.uber.org/zap"

	"monch/internal/httputil"
	"monch/internal/transport/http/middleware"
)

type FeedHandler struct {
	feedService FeedService
	logger      *zap.Logger
}

func NewFeedHandler(feedService FeedService, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		logger:      logger,
	}
}

// GetFeed handles GET /posts/following
// Returns the root posts of followed users, newest first.
//
// Query params:
//   - page: optional, 1-based page number (default 1)
//   - page_size: optional, posts per page (default 10, max 50)
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	page, err := httputil.PageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, "get feed", err)
		return
	}

	feed, err := h.feedService.GetFeed(r.Context(), userID, page)
	if err != nil {
		writeError(w, h.logger, "get feed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}
