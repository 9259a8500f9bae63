package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"

	"monch/internal/model"
)

// formMemory is how much of a multipart body is kept in memory before
// the remaining file parts spill to temporary files.
const formMemory = 8 << 20

var (
	ErrInvalidBody = errors.New("invalid request body")
	ErrInvalidPage = errors.New("page and page_size must be positive integers")
)

// IsMultipart reports whether the request carries multipart/form-data.
func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// DecodeJSON decodes the request body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.ErrFileTooLarge
		}
		return ErrInvalidBody
	}
	return nil
}

// ParseMultipart parses a multipart body of at most maxBytes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.ErrFileTooLarge
		}
		return ErrInvalidBody
	}
	return nil
}

// FormUpload returns the single file sent under field, or nil when absent.
// ParseMultipart must have been called.
func FormUpload(r *http.Request, field string) (*model.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	upload, err := ReadUpload(r.MultipartForm.File[field][0])
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// FormUploads returns every file sent under field.
func FormUploads(r *http.Request, field string) ([]model.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	uploads := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := ReadUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// ReadUpload reads a multipart file part, refusing anything over MaxUploadSizeBytes.
func ReadUpload(fh *multipart.FileHeader) (model.Upload, error) {
	if fh.Size > model.MaxUploadSizeBytes {
		return model.Upload{}, model.ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return model.Upload{}, ErrInvalidBody
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, model.MaxUploadSizeBytes+1))
	if err != nil {
		return model.Upload{}, ErrInvalidBody
	}
	if len(data) > model.MaxUploadSizeBytes {
		return model.Upload{}, model.ErrFileTooLarge
	}

	return model.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// PageFromQuery reads page and page_size, clamped to the allowed bounds.
func PageFromQuery(r *http.Request) (model.PageRequest, error) {
	q := r.URL.Query()
	var req model.PageRequest
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > model.MaxPage {
			return req, ErrInvalidPage
		}
		req.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, ErrInvalidPage
		}
		req.PageSize = n
	}
	return req.Normalize(), nil
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are only
// honoured when a proxy-aware middleware has already rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
