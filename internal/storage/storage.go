package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"product-catalog/internal/config"

	"github.com/google/uuid"
)

// DefaultMaxImageSize is the upload limit applied when none is configured
const DefaultMaxImageSize = 5 * 1024 * 1024

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedType  = errors.New("only image files are allowed (jpeg|png|webp|gif)")
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidImageName = errors.New("invalid image name")
	ErrImageExists      = errors.New("image already exists")

	allowedContentTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Object is a stored image opened for reading
type Object interface {
	io.ReadSeekCloser
}

// ImageStore persists uploaded product images under flat filenames
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (Object, error)
	Remove(ctx context.Context, name string) error
}

// IsAllowedContentType reports whether images of this MIME type are accepted
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

// SniffImage reads the head of r to detect its content type, rejecting anything outside the
// allowed image types. The returned reader replays the sniffed bytes followed by the rest of r.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read file for content detection: %w", err)
	}
	head = head[:n]

	detected := strings.ToLower(http.DetectContentType(head))
	if !IsAllowedContentType(detected) {
		return "", nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, detected)
	}

	return detected, io.MultiReader(bytes.NewReader(head), r), nil
}

// FileName builds the stored name for an upload: a millisecond timestamp prefix followed by the
// original base name with whitespace runs replaced by "-".
func FileName(original string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	base = whitespaceRun.ReplaceAllString(strings.TrimSpace(base), "-")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}

// Disambiguate inserts a short random tag before the extension, for names already taken
func Disambiguate(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), uuid.NewString()[:8], ext)
}

// ValidateName rejects names that are empty or could address something outside a flat namespace
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidImageName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidImageName
	}
	return nil
}

// New returns the ImageStore selected by the storage driver setting
func New(cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Driver {
	case "", "local":
		store, err := NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		store, err := NewMinIOStore(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
