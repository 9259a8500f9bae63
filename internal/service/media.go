package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // registers the webp decoder

	"monch/internal/model"
	"monch/internal/storage"
)

// ProcessedImage is an upload ready to be written to storage.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Ext         string
	MediaType   string
}

// MediaService turns raw uploads into stored files.
type MediaService struct {
	store  storage.ObjectStore
	logger *zap.Logger
}

func NewMediaService(store storage.ObjectStore, logger *zap.Logger) *MediaService {
	return &MediaService{store: store, logger: logger}
}

// Save validates and processes an upload for the given kind and writes it
// under a fresh key.
func (s *MediaService) Save(ctx context.Context, upload model.Upload, kind model.MediaKind) (*model.StoredMedia, error) {
	maxSide := model.PostMediaMaxSide
	folder := model.PostMediaFolder
	if kind == model.MediaKindAvatar {
		maxSide = model.AvatarMaxSide
		folder = model.AvatarFolder
	}

	img, err := ProcessImage(upload, maxSide)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), img.Ext)
	if err := s.store.Put(ctx, key, img.ContentType, img.Data); err != nil {
		return nil, err
	}

	return &model.StoredMedia{Key: key, URL: s.store.URL(key), MediaType: img.MediaType}, nil
}

// Copy duplicates a stored file under a fresh key in the same folder.
func (s *MediaService) Copy(ctx context.Context, key string) (*model.StoredMedia, error) {
	newKey := fmt.Sprintf("%s/%s%s", path.Dir(key), uuid.NewString(), path.Ext(key))
	if err := s.store.Copy(ctx, key, newKey); err != nil {
		return nil, fmt.Errorf("copy %s: %w", key, err)
	}
	return &model.StoredMedia{Key: newKey, URL: s.store.URL(newKey)}, nil
}

// Delete removes stored files. Failures are logged and otherwise ignored:
// the database rows are already gone and a leftover file is only garbage.
func (s *MediaService) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
		}
	}
}

// ProcessImage validates an upload and normalizes it.
//
// GIFs are kept byte-for-byte. Everything else is decoded with EXIF
// orientation applied, scaled down to fit maxSide x maxSide, flattened
// onto white and re-encoded: PNG stays PNG, anything else becomes JPEG.
func ProcessImage(upload model.Upload, maxSide int) (*ProcessedImage, error) {
	data := upload.Data
	if len(data) > model.MaxUploadSizeBytes {
		return nil, model.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, model.ErrInvalidImage
	}

	declared := normalizeContentType(upload.ContentType)
	sniffed := normalizeContentType(http.DetectContentType(data[:min(len(data), 512)]))
	if declared == "" || declared == "application/octet-stream" {
		declared = sniffed
	}
	if !model.IsAllowedImageType(declared) {
		return nil, model.ErrInvalidImageType
	}

	if sniffed == model.ContentTypeGIF {
		return &ProcessedImage{
			Data:        data,
			ContentType: model.ContentTypeGIF,
			Ext:         ".gif",
			MediaType:   model.MediaTypeGIF,
		}, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.ErrInvalidImage
	}

	fitted := imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)
	bounds := fitted.Bounds()
	flat := imaging.Overlay(imaging.New(bounds.Dx(), bounds.Dy(), color.White), fitted, image.Pt(0, 0), 1.0)

	out := &ProcessedImage{MediaType: model.MediaTypeImage}
	var buf bytes.Buffer
	if sniffed == model.ContentTypePNG {
		err = imaging.Encode(&buf, flat, imaging.PNG)
		out.ContentType, out.Ext = model.ContentTypePNG, ".png"
	} else {
		err = imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(model.JPEGQuality))
		out.ContentType, out.Ext = model.ContentTypeJPEG, ".jpg"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	out.Data = buf.Bytes()

	return out, nil
}

func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
