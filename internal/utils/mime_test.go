package utils

import "testing"

func TestImageMIMEType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	tests := []struct {
		name string
		path string
		data []byte
		want string
	}{
		{"extension wins", "shelf.jpg", png, "image/jpeg"},
		{"upper case extension", "shelf.PNG", nil, "image/png"},
		{"sniffed without extension", "shelf", png, "image/png"},
		{"unknown content", "notes", []byte("hello"), "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageMIMEType(tt.path, tt.data); got != tt.want {
				t.Errorf("ImageMIMEType(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
