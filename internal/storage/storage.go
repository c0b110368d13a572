// Package storage keeps user-uploaded avatar images.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "tablebook/internal/errors"
)

// Store saves binary objects and hands back stable references.
type Store interface {
	// Put stores data and returns its reference.
	Put(ctx context.Context, data []byte, contentType, ext string) (string, error)
	// Delete removes the object behind ref.
	Delete(ctx context.Context, ref string) error
	// URL returns a location a client can fetch ref from.
	URL(ctx context.Context, ref string) (string, error)
}

// Image describes a validated upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ValidateImage sniffs data and accepts it only if it is a non-empty image
// no larger than maxBytes.
func ValidateImage(data []byte, maxBytes int64) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", apperrors.ErrInvalidUpload)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperrors.ErrInvalidUpload, maxBytes)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: only image files are allowed, got %s", apperrors.ErrInvalidUpload, mt.String())
	}

	return &Image{Data: data, ContentType: contentTypeOf(mt), Ext: mt.Extension()}, nil
}

// contentTypeOf drops MIME parameters such as charset.
func contentTypeOf(mt *mimetype.MIME) string {
	ct, _, _ := strings.Cut(mt.String(), ";")
	return ct
}
