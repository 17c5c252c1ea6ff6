package blobstore

import (
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// ContentTypeFor sniffs the content type from the file extension only.
func ContentTypeFor(name string) string {
	if ct, ok := imageContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

// ExtensionFor maps an image format name ("png", "jpeg", "image/webp") to a
// file extension, defaulting to .png.
func ExtensionFor(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "image/"))
	switch f {
	case "jpg", "jpeg":
		return ".jpg"
	case "gif", "webp", "bmp":
		return "." + f
	default:
		return ".png"
	}
}
