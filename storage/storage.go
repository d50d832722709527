// Package storage persists uploaded menu images and releases them again.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"cafe-ordering-api/apperr"

	"github.com/gabriel-vasile/mimetype"
)

// ImageStore saves image bodies under a generated name and returns the public
// reference recorded on the menu item.
type ImageStore interface {
	Save(ctx context.Context, name string, body io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, ref string) error
}

var allowedExt = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Upload is a validated image ready to be stored.
type Upload struct {
	Name        string
	ContentType string
	Body        multipart.File
}

func (u *Upload) Close() error {
	if u == nil || u.Body == nil {
		return nil
	}
	return u.Body.Close()
}

// Open validates an uploaded file header and opens its body. The file must be
// within maxBytes, carry an image extension and sniff as an image.
func Open(fh *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if fh.Size > maxBytes {
		return nil, apperr.Validation(fmt.Sprintf("Image too large (max %d bytes)", maxBytes))
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return nil, apperr.Validation("Only image files allowed")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Internal("Failed to read upload", err)
	}
	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, apperr.Internal("Failed to read upload", err)
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		f.Close()
		return nil, apperr.Validation("Only image files allowed")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, apperr.Internal("Failed to read upload", err)
	}

	return &Upload{
		Name:        GenerateName(ext, time.Now()),
		ContentType: mime.String(),
		Body:        f,
	}, nil
}

// GenerateName derives a collision-resistant file name from the upload time.
func GenerateName(ext string, now time.Time) string {
	return fmt.Sprintf("menu-%d%s", now.UnixNano(), ext)
}
