package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/arcana-family/arcana/internal/cataloging"
	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/recognition"
)

// HandleScan runs a shelf scan on an uploaded photo. It answers with the scan
// result as JSON, or streams progress as server-sent events when the client
// asks for text/event-stream or passes stream=1.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		var ue *uploadError
		if errors.As(err, &ue) {
			h.writeError(w, ue.message, ue.code)
			return
		}
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if wantsStream(r) {
		h.streamScan(w, r, up)
		return
	}

	result, err := h.scanner.ScanShelf(r.Context(), up.data, up.mimeType)
	if err != nil {
		h.writeError(w, scanFailure(err), scanStatus(err))
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) streamScan(w http.ResponseWriter, r *http.Request, up *upload) {
	events, err := newEventWriter(w)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	events.send("progress", models.ScanProgress{Step: models.StepUploading, Message: "Photo uploaded", Progress: 10})
	result, err := h.scanner.ScanShelf(r.Context(), up.data, up.mimeType,
		cataloging.WithProgress(func(p models.ScanProgress) {
			events.send("progress", p)
		}))
	if err != nil {
		h.logger.Error("Shelf scan failed", "err", err)
		events.send("error", errorResponse{Success: false, Message: scanFailure(err)})
		return
	}
	events.send("result", result)
}

func wantsStream(r *http.Request) bool {
	if v := r.URL.Query().Get("stream"); v == "1" || v == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func scanStatus(err error) int {
	var recErr *recognition.Error
	if errors.As(err, &recErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func scanFailure(err error) string {
	var recErr *recognition.Error
	if errors.As(err, &recErr) {
		return "Could not analyze the shelf photo: " + recErr.Err.Error()
	}
	return "Shelf scan failed: " + err.Error()
}

// eventWriter writes server-sent events
type eventWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming is not supported by this connection")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventWriter{w: w, flusher: flusher}, nil
}

func (e *eventWriter) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload)
	e.flusher.Flush()
}
