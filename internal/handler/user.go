package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"monch/internal/httputil"
	"monch/internal/model"
	"monch/internal/transport/http/middleware"
)

// maxAvatarForm bounds a multipart body carrying one avatar.
const maxAvatarForm = model.MaxUploadSizeBytes + 1<<20

type UserHandler struct {
	userService UserService
	postService PostService
	logger      *zap.Logger
}

func NewUserHandler(userService UserService, postService PostService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		postService: postService,
		logger:      logger,
	}
}

// Register creates an account from JSON or multipart with an optional avatar.
// POST /users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	var avatar *model.Upload

	if httputil.IsMultipart(r) {
		if err := httputil.ParseMultipart(w, r, maxAvatarForm); err != nil {
			writeError(w, h.logger, "register", err)
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
		req.DisplayName = r.FormValue("display_name")

		var err error
		if avatar, err = httputil.FormUpload(r, "avatar"); err != nil {
			writeError(w, h.logger, "register", err)
			return
		}
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "register", err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req, avatar)
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, user)
}

// CheckUsername reports whether a username is free.
// GET /users/check-username?username=
func (h *UserHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		httputil.WriteBadRequestWithCode(w, model.CodeValidation, "username: username is required")
		return
	}

	resp, err := h.userService.CheckUsername(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, "check username", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Search handles GET /users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Search(r.Context(), r.URL.Query().Get("q"), middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "search users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// GetProfile handles GET /users/{username}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetProfile(r.Context(), chi.URLParam(r, "username"), middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateProfile edits display name, bio and avatar from JSON or multipart.
// PATCH /users/{username}
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateProfileRequest
	var avatar *model.Upload

	if httputil.IsMultipart(r) {
		if err := httputil.ParseMultipart(w, r, maxAvatarForm); err != nil {
			writeError(w, h.logger, "update profile", err)
			return
		}
		req.DisplayName = formField(r, "display_name")
		req.Bio = formField(r, "bio")

		var err error
		if avatar, err = httputil.FormUpload(r, "avatar"); err != nil {
			writeError(w, h.logger, "update profile", err)
			return
		}
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "update profile", err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, chi.URLParam(r, "username"), &req, avatar)
	if err != nil {
		writeError(w, h.logger, "update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// DeleteAccount handles DELETE /users/{username}
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), userID, chi.URLParam(r, "username")); err != nil {
		writeError(w, h.logger, "delete account", err)
		return
	}
	httputil.WriteNoContent(w)
}

// Posts handles GET /users/{username}/posts (root posts, newest first)
func (h *UserHandler) Posts(w http.ResponseWriter, r *http.Request) {
	h.listPosts(w, r, false)
}

// Replies handles GET /users/{username}/replies
func (h *UserHandler) Replies(w http.ResponseWriter, r *http.Request) {
	h.listPosts(w, r, true)
}

func (h *UserHandler) listPosts(w http.ResponseWriter, r *http.Request, replies bool) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, "list user posts", err)
		return
	}

	posts, err := h.postService.ListByUser(r.Context(), chi.URLParam(r, "username"), replies, page, middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list user posts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// formField returns a pointer to a submitted form value, nil when the field is absent.
func formField(r *http.Request, name string) *string {
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}
