package utils

import (
	"mime"
	"net/http"
	"path/filepath"
)

// ImageMIMEType guesses the type of an image file from its extension, falling
// back to sniffing its content.
func ImageMIMEType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
