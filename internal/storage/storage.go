package storage

import (
	"context"
	"path/filepath"
	"strings"
)

// Stored locates a saved photo. Reference is backend-specific (disk path or
// object key); URL is what clients and reviewers load the image from.
type Stored struct {
	Reference string
	URL       string
}

// Store persists uploaded photos.
type Store interface {
	Save(ctx context.Context, key, contentType string, data []byte) (Stored, error)
}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// ObjectKey names the stored object after the request id, keeping the
// upload's extension when the content type doesn't decide it.
func ObjectKey(id, filename, contentType string) string {
	if ext, ok := extensionsByType[strings.ToLower(contentType)]; ok {
		return id + ext
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\:`) {
		ext = ".bin"
	}
	return id + ext
}
