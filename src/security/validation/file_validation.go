package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/tradelens/backend/src/logger"
)

// ErrNotAnImage marks uploads that fail either validation step.
var ErrNotAnImage = errors.New("file is not an accepted image")

// AllowedClientContentTypes is a map for quick lookup of allowed
// client-declared MIME types for screenshot uploads.
var AllowedClientContentTypes = map[string]bool{
	"image/png":                true,
	"image/jpeg":               true,
	"image/gif":                true,
	"image/bmp":                true,
	"image/webp":               true,
	"image/tiff":               true,
	"application/octet-stream": true, // fallback; magic-byte check still applies
	"text/html":                false,
	"image/svg+xml":            false, // scriptable, explicitly disallowed
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	normalized := strings.ToLower(strings.Split(contentType, ";")[0])
	if allowed, exists := AllowedClientContentTypes[normalized]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed", ErrNotAnImage, contentType)
	}
	return nil
}

// ValidateImageContentByMagicBytes checks the actual file content signature.
// It returns the detected content type and an error if the content is not an
// image. The read pointer is reset so the pipeline can re-read the file.
func ValidateImageContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512) // http.DetectContentType considers at most 512 bytes
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := strings.ToLower(strings.Split(http.DetectContentType(buffer[:n]), ";")[0])

	// TIFF is not in DetectContentType's sniff table and comes back as
	// octet-stream; the OCR engine rejects non-images downstream either way.
	allowedDetectedTypes := map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/gif":  true,
		"image/bmp":  true,
		"image/webp": true,
	}

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("%w: detected content type '%s'", ErrNotAnImage, detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
