package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeByExtension(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"frame.jpg", "image/jpeg"},
		{"FRAME.JPEG", "image/jpeg"},
		{"clip.mov", "video/quicktime"},
		{"clip.avi", "video/x-msvideo"},
		{"notes.txt", ""},
		{"noext", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TypeByExtension(tt.name), tt.name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		size     int64
		expected error
	}{
		{"ok.png", "image/png", 1024, nil},
		{"ok.mp4", "video/mp4; codecs=avc1", MaxFileSize, nil},
		{"big.jpg", "image/jpeg", MaxFileSize + 1, ErrFileTooLarge},
		{"empty.jpg", "image/jpeg", 0, ErrEmptyFile},
		{"doc.pdf", "application/pdf", 10, ErrUnsupportedType},
		{"raw.bmp", "image/bmp", 10, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.name, tt.mime, tt.size)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestValidateBatch(t *testing.T) {
	assert.NoError(t, ValidateBatch(MaxFilesPerBatch))
	assert.ErrorIs(t, ValidateBatch(MaxFilesPerBatch+1), ErrTooManyFiles)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("video/webm"))
	assert.False(t, IsVideo("image/webp"))
	assert.False(t, IsVideo("video/x-flv"))
	assert.Equal(t, ".mov", Extension("video/quicktime"))
}
