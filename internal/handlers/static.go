package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HandleStatic serves the web app from the static directory. Unknown paths
// fall back to index.html so client-side routes survive a reload.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		h.writeError(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.opts.StaticDir, filepath.FromSlash(path))
	if info, err := os.Stat(fullPath); err != nil || info.IsDir() {
		fullPath = filepath.Join(h.opts.StaticDir, "index.html")
	}
	http.ServeFile(w, r, fullPath)
}
