package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/media"
)

// ErrTooLarge is returned when the written content exceeds the store's size limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// FileStore keeps uploaded media files on disk under a single directory.
type FileStore struct {
	dir     string
	maxSize int64
	mu      sync.Mutex
	logger  *logger.Logger
}

// NewFileStore creates the upload directory if needed.
func NewFileStore(config *config.Config, logger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(config.UploadDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	maxSize := config.MaxUploadSize
	if maxSize <= 0 {
		maxSize = media.MaxFileSize
	}

	return &FileStore{
		dir:     config.UploadDirectory,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

// Save writes the content of r as "<id><ext>" where ext derives from mimeType,
// and returns the stored filename and the number of bytes written.
func (s *FileStore) Save(id, mimeType string, r io.Reader) (string, int64, error) {
	ext := media.Extension(mimeType)
	if ext == "" {
		return "", 0, fmt.Errorf("%q: %w", mimeType, media.ErrUnsupportedType)
	}

	filename := id + ext
	fullpath := filepath.Join(s.dir, filename)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(fullpath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", filename, err)
	}

	// Read one byte past the limit to detect oversized content.
	written, err := io.Copy(file, io.LimitReader(r, s.maxSize+1))
	closeErr := file.Close()
	if err == nil && written > s.maxSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullpath)
		return "", 0, fmt.Errorf("failed to save %s: %w", filename, err)
	}

	s.logger.Info("Stored upload %s (%d bytes)", filename, written)
	return filename, written, nil
}

// Path returns the absolute location of a stored file, rejecting names that escape the directory.
func (s *FileStore) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *FileStore) Remove(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filename, err)
	}
	return nil
}
