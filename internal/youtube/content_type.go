package youtube

import (
	"path/filepath"
	"strings"
)

// ContentType infers the upload content type from a thumbnail file name.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
