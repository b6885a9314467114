package bridge

import (
	"path/filepath"
	"strings"
)

// MimeTypeFromPath infers an image MIME type from the file extension. The
// match is case-insensitive; unknown extensions map to image/png.
func MimeTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// formatOf returns the short format name of an image MIME type, as used in
// [VisionOptions.SupportedFormats] ("jpg", "png", ...).
func formatOf(mimeType string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.ToLower(mimeType), "image/"))
	if f == "jpeg" {
		return "jpg"
	}
	return f
}
