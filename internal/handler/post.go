package handler

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"monch/internal/httputil"
	"monch/internal/model"
	"monch/internal/transport/http/middleware"
)

// maxPostForm bounds a multipart post body: every media file plus form overhead.
const maxPostForm = model.MaxPostMediaCount*model.MaxUploadSizeBytes + 1<<20

type PostHandler struct {
	postService PostService
	logger      *zap.Logger
}

func NewPostHandler(postService PostService, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		logger:      logger,
	}
}

// List handles GET /posts?page=&page_size=&search=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, "list posts", err)
		return
	}

	posts, err := h.postService.List(r.Context(), r.URL.Query().Get("search"), page, middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list posts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Create handles POST /posts from JSON or multipart with up to four media files.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	if httputil.IsMultipart(r) {
		if err := h.readPostForm(w, r, &req); err != nil {
			writeError(w, h.logger, "create post", err)
			return
		}
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "create post", err)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, h.logger, "create post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) readPostForm(w http.ResponseWriter, r *http.Request, req *model.CreatePostRequest) error {
	if err := httputil.ParseMultipart(w, r, maxPostForm); err != nil {
		return err
	}
	req.Content = r.FormValue("content")

	var err error
	if req.ParentPostID, err = formID(r, "parent_post"); err != nil {
		return err
	}
	if req.RepostOfID, err = formID(r, "repost_of"); err != nil {
		return err
	}
	req.Media, err = httputil.FormUploads(r, "media")
	return err
}

// GetByID handles GET /posts/{id} and returns the post with its reply tree.
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	post, err := h.postService.GetByID(r.Context(), postID, middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Replies handles GET /posts/{id}/replies
func (h *PostHandler) Replies(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	replies, err := h.postService.GetReplies(r.Context(), postID, middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get replies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, replies)
}

// Thread handles GET /posts/{id}/thread
func (h *PostHandler) Thread(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	thread, err := h.postService.GetThread(r.Context(), postID, middleware.ViewerID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get thread", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, thread)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	if err := h.postService.Delete(r.Context(), postID, userID); err != nil {
		writeError(w, h.logger, "delete post", err)
		return
	}
	httputil.WriteNoContent(w)
}

// Like handles POST /posts/{id}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	if err := h.postService.Like(r.Context(), postID, userID); err != nil {
		writeError(w, h.logger, "like post", err)
		return
	}
	httputil.WriteDetail(w, http.StatusCreated, "liked")
}

// Unlike handles DELETE /posts/{id}/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID, ok := pathInt64(r, "id")
	if !ok {
		httputil.WriteNotFound(w, "Post not found")
		return
	}

	if err := h.postService.Unlike(r.Context(), postID, userID); err != nil {
		writeError(w, h.logger, "unlike post", err)
		return
	}
	httputil.WriteNoContent(w)
}

// LikedPosts handles GET /likes/liked-posts
func (h *PostHandler) LikedPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, "liked posts", err)
		return
	}

	posts, err := h.postService.LikedPosts(r.Context(), userID, page)
	if err != nil {
		writeError(w, h.logger, "liked posts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// formID parses an optional numeric form field.
func formID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, model.NewValidationError(name, "must be a post id")
	}
	return &id, nil
}
