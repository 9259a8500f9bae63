package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"monch/internal/httputil"
	"monch/internal/model"
)

// writeError maps a service error onto the HTTP error taxonomy.
// Anything unrecognized is logged and reported as a 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.WriteBadRequestWithCode(w, model.CodeValidation, ve.Error())
	case errors.Is(err, model.ErrEmptyPost),
		errors.Is(err, model.ErrTooManyMedia),
		errors.Is(err, model.ErrRepostAndReply),
		errors.Is(err, model.ErrRepostMedia),
		errors.Is(err, model.ErrCannotFollowSelf):
		httputil.WriteBadRequestWithCode(w, model.CodeValidation, err.Error())
	case errors.Is(err, httputil.ErrInvalidBody), errors.Is(err, httputil.ErrInvalidPage):
		httputil.WriteBadRequest(w, err.Error())

	case errors.Is(err, model.ErrUsernameExists):
		httputil.WriteBadRequestWithCode(w, model.CodeUsernameTaken, "A user with that username already exists")
	case errors.Is(err, model.ErrAlreadyLiked), errors.Is(err, model.ErrNotLiked):
		httputil.WriteDetail(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "File exceeds the 10MB limit")
	case errors.Is(err, model.ErrInvalidImageType):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
	case errors.Is(err, model.ErrInvalidImage):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImage, err.Error())

	case errors.Is(err, model.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	case errors.Is(err, model.ErrPostNotFound):
		httputil.WriteNotFound(w, "Post not found")

	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrNotPostOwner):
		httputil.WriteForbidden(w, err.Error())

	case errors.Is(err, model.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "Invalid username or password")
	case errors.Is(err, model.ErrRefreshTokenMissing):
		httputil.WriteUnauthorizedWithCode(w, model.CodeTokenMissing, "Refresh token not provided")
	case errors.Is(err, model.ErrRefreshTokenNotFound):
		httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid refresh token")
	case errors.Is(err, model.ErrRefreshTokenExpired):
		httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Refresh token has expired")
	case errors.Is(err, model.ErrRefreshTokenReused):
		httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")

	default:
		logger.Error(op+" failed", zap.Error(err))
		httputil.WriteInternalError(w, "Internal server error")
	}
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
