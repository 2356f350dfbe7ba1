package validation

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/folioimport/src/logger"
)

// AllowedCSVContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedCSVContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // Often used for CSV by older Excel
	"text/plain":               true, // CSVs are often plain text
	"application/octet-stream": true, // Fallback, but be more cautious
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false, // .xlsx, explicitly disallow for CSV endpoint
}

// AllowedImageContentTypes covers the screenshot formats accepted by the OCR path.
var AllowedImageContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// ValidateCSVContentType checks the Content-Type header provided by the client
// for a CSV upload.
func ValidateCSVContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if allowed, exists := AllowedCSVContentTypes[base]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for CSV upload", contentType)
	}
	return nil
}

// ValidateImageContentType checks the client-declared type for a screenshot upload.
func ValidateImageContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedImageContentTypes[base] {
		logger.L.Warn("Disallowed client-declared image Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for screenshot upload", contentType)
	}
	return nil
}

// ValidateCSVContentByMagicBytes checks the actual file content signature.
// It returns the detected content type and an error if validation fails.
func ValidateCSVContentByMagicBytes(file io.ReadSeeker) (string, error) {
	detectedContentType, err := sniff(file)
	if err != nil {
		return "", err
	}

	// For CSV we mainly care that the content is text-based and not something
	// like an executable. octet-stream is allowed but strict parsing later is
	// what actually rejects non-CSV content.
	allowedDetectedTypes := map[string]bool{
		"text/plain":               true,
		"text/csv":                 true,
		"application/csv":          true,
		"application/octet-stream": true,
	}

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not consistent with a CSV file", detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}

// ValidateImageContentByMagicBytes checks that the upload really is an image
// of an accepted format before it is forwarded to the OCR collaborator.
func ValidateImageContentByMagicBytes(file io.ReadSeeker) (string, error) {
	detectedContentType, err := sniff(file)
	if err != nil {
		return "", err
	}
	if !AllowedImageContentTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected image content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not an accepted screenshot format", detectedContentType)
	}
	return detectedContentType, nil
}

func sniff(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512) // Read first 512 bytes for MIME detection
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so the actual consumer sees the full file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	return strings.ToLower(strings.Split(detectedContentType, ";")[0]), nil
}
