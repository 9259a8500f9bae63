package model

import "errors"

// MediaKind selects the processing profile of an upload.
type MediaKind string

const (
	MediaKindAvatar MediaKind = "avatar"
	MediaKindPost   MediaKind = "post"
)

const (
	MaxUploadSizeBytes = 10 * 1024 * 1024 // 10MB per file
	AvatarMaxSide      = 360
	PostMediaMaxSide   = 1080
	JPEGQuality        = 75
	AvatarFolder       = "avatars"
	MediaCacheControl  = "public, max-age=31536000" // 1 year
)

// Media type tags stored on post_media.media_type
const (
	MediaTypeImage = "image"
	MediaTypeGIF   = "gif"
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
	CodeInvalidImage     = "INVALID_IMAGE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
	ErrInvalidImage     = errors.New("uploaded file is not a valid image")
)

// Upload is a raw file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StoredMedia is a processed file written to object storage.
type StoredMedia struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
