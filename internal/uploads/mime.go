package uploads

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const invalidTypeMessage = "Invalid file type. Only JPEG, PNG, and WebP images are allowed."

// allowedImageTypes maps each accepted media type to the extension used when
// the client filename carries none.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

func parseMimeType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	if mediaType == "" {
		return "", fmt.Errorf("mime type missing")
	}
	return strings.ToLower(mediaType), nil
}

// isAllowedImage reports whether both the declared type and the sniffed
// content are on the image allow-list.
func isAllowedImage(declared string, head []byte) (string, bool) {
	mediaType, err := parseMimeType(declared)
	if err != nil {
		return "", false
	}
	if _, ok := allowedImageTypes[mediaType]; !ok {
		return "", false
	}
	sniffed, err := parseMimeType(http.DetectContentType(head))
	if err != nil {
		return "", false
	}
	if _, ok := allowedImageTypes[sniffed]; !ok {
		return "", false
	}
	return sniffed, true
}

func extensionFor(filename, mediaType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return allowedImageTypes[mediaType]
}
