package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type FileValidator struct {
	allowedMime map[string]bool
	maxSize     int64
}

func NewImageValidator(allowedMimeTypes []string, maxSizeMB int) *FileValidator {
	allowedMime := make(map[string]bool)
	for _, m := range allowedMimeTypes {
		if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
			allowedMime[m] = true
		}
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &FileValidator{
		allowedMime: allowedMime,
		maxSize:     int64(maxSizeMB) << 20,
	}
}

// ReadFile validates an uploaded file and returns its content and detected mime type.
func (v *FileValidator) ReadFile(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	if fileHeader.Size > v.maxSize {
		return nil, "", fmt.Errorf("file too large (max %d MB)", v.maxSize>>20)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, v.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file")
	}
	mimeType, err := v.Validate(data)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

// Validate checks size and sniffed content type of data.
func (v *FileValidator) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty file")
	}
	if int64(len(data)) > v.maxSize {
		return "", fmt.Errorf("file too large (max %d MB)", v.maxSize>>20)
	}
	detectedMime := strings.ToLower(http.DetectContentType(data))
	if !v.allowedMime[detectedMime] {
		return "", fmt.Errorf("invalid file type")
	}
	return detectedMime, nil
}

// ExtensionFor returns the file extension used when storing mimeType.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "text/csv":
		return ".csv"
	default:
		return ".bin"
	}
}
