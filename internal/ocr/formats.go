package ocr

import (
	"path/filepath"
	"strings"
)

// Supported file extensions by media kind. Matching is case-insensitive.
var (
	ImageExtensions    = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}
	VideoExtensions    = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm", ".m4v"}
	DocumentExtensions = []string{".pdf", ".docx", ".txt", ".rtf"}
)

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsImagePath reports whether the path has a supported image extension.
func IsImagePath(path string) bool { return hasExtension(path, ImageExtensions) }

// IsVideoPath reports whether the path has a supported video extension.
func IsVideoPath(path string) bool { return hasExtension(path, VideoExtensions) }

// IsDocumentPath reports whether the path has a supported document extension.
func IsDocumentPath(path string) bool { return hasExtension(path, DocumentExtensions) }
