// Package media holds the upload constraints shared by the server and the dashboard client.
package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is the largest accepted media file (50 MB).
	MaxFileSize int64 = 50 << 20
	// MaxFilesPerBatch caps how many files a single drop or upload batch may contain.
	MaxFilesPerBatch = 5
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the maximum size")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooManyFiles    = errors.New("too many files")
)

// allowedTypes maps accepted MIME types to their canonical extension.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/x-msvideo": ".avi",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// TypeByExtension returns the MIME type for a filename, or "" when the extension is not accepted.
func TypeByExtension(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// Extension returns the canonical file extension for an accepted MIME type.
func Extension(mimeType string) string {
	return allowedTypes[normalize(mimeType)]
}

// IsAllowed reports whether mimeType is in the allow-list.
func IsAllowed(mimeType string) bool {
	_, ok := allowedTypes[normalize(mimeType)]
	return ok
}

// IsVideo reports whether mimeType is an accepted video type.
func IsVideo(mimeType string) bool {
	return IsAllowed(mimeType) && strings.HasPrefix(normalize(mimeType), "video/")
}

// Validate checks a single file against the size ceiling and the MIME allow-list.
func Validate(name, mimeType string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%s (%d bytes): %w", name, size, ErrFileTooLarge)
	}
	if !IsAllowed(mimeType) {
		return fmt.Errorf("%s (%q): %w", name, mimeType, ErrUnsupportedType)
	}
	return nil
}

// ValidateBatch checks the number of files submitted together.
func ValidateBatch(count int) error {
	if count > MaxFilesPerBatch {
		return fmt.Errorf("%d files, at most %d allowed: %w", count, MaxFilesPerBatch, ErrTooManyFiles)
	}
	return nil
}

// normalize strips parameters such as "; charset=..." and lowercases the type.
func normalize(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
