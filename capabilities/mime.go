package capabilities

import (
	"path"
	"strings"
)

var mimeTypes = map[string]string{
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".xml":  "application/xml",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".py":   "text/x-python",
	".go":   "text/x-go",
	".rs":   "text/x-rust",
}

// MimeType returns the MIME type for a file name by extension, defaulting
// to text/plain.
func MimeType(name string) string {
	if mt, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return mt
	}
	return "text/plain"
}
