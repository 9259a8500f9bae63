package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"monch/internal/httputil"
	"monch/internal/model"
	"monch/internal/transport/http/middleware"
)

type FollowHandler struct {
	followService FollowService
	logger        *zap.Logger
}

func NewFollowHandler(followService FollowService, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followService: followService,
		logger:        logger,
	}
}

// Toggle handles POST /follows/toggle {username}
func (h *FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.ToggleFollowRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "toggle follow", err)
		return
	}
	if req.Username == "" {
		httputil.WriteBadRequestWithCode(w, model.CodeValidation, "username: username is required")
		return
	}

	status, err := h.followService.Toggle(r.Context(), userID, req.Username)
	if err != nil {
		writeError(w, h.logger, "toggle follow", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.ToggleFollowResponse{Status: status})
}

// IsFollowing handles GET /follows/is_following?username=
func (h *FollowHandler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		httputil.WriteBadRequestWithCode(w, model.CodeValidation, "username: username is required")
		return
	}

	following, err := h.followService.IsFollowing(r.Context(), userID, username)
	if err != nil {
		writeError(w, h.logger, "is following", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.IsFollowingResponse{IsFollowing: following})
}

// GetFollowers handles GET /users/{username}/followers
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := h.followService.GetFollowers(r.Context(), chi.URLParam(r, "username"), middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get followers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// GetFollowing handles GET /users/{username}/following
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := h.followService.GetFollowing(r.Context(), chi.URLParam(r, "username"), middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get following", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}
