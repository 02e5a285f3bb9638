package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arcana-family/arcana/internal/cataloging"
	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/storage"
)

// Scanner runs the shelf-scan pipeline
type Scanner interface {
	ScanShelf(ctx context.Context, image []byte, mimeType string, opts ...cataloging.ScanOption) (*models.ScanResult, error)
}

// Books is the catalog store as seen by the HTTP API
type Books interface {
	List(ctx context.Context, f storage.Filter) (*storage.Page, error)
	Get(ctx context.Context, id string) (*models.CatalogEntry, error)
	Create(ctx context.Context, entry *models.CatalogEntry) error
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.CatalogEntry, error)
	UpdateLoan(ctx context.Context, id, borrower string) (*models.CatalogEntry, error)
	SaveReadingCard(ctx context.Context, id string, card *models.ReadingCard) (*models.CatalogEntry, error)
	FilterOptions(ctx context.Context) (categories, authors []string, err error)
	NextCopyNumber(ctx context.Context, title, author string) (int, error)
}

// CardGenerator writes reading cards
type CardGenerator interface {
	Generate(ctx context.Context, title, author string) (*models.ReadingCard, error)
}

// Options configure a Handler
type Options struct {
	MaxUploadBytes int64
	StaticDir      string
	// Owners are the valid book owners. FAMILY alone when empty.
	Owners  []models.Owner
	Version string
	Logger  *slog.Logger
}

type Handler struct {
	scanner Scanner
	books   Books
	cards   CardGenerator
	opts    Options
	logger  *slog.Logger
}

const defaultMaxUploadBytes = 5 << 20

// New creates the HTTP handlers. cards may be nil, in which case reading cards
// are unavailable.
func New(scanner Scanner, books Books, cards CardGenerator, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{scanner: scanner, books: books, cards: cards, opts: opts, logger: logger}
}

// Routes registers every endpoint on a new ServeMux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/books/scan", h.HandleScan)
	mux.HandleFunc("GET /api/books", h.HandleListBooks)
	mux.HandleFunc("POST /api/books", h.HandleCreateBook)
	mux.HandleFunc("GET /api/books/filters", h.HandleFilterOptions)
	mux.HandleFunc("GET /api/books/{id}", h.HandleGetBook)
	mux.HandleFunc("DELETE /api/books/{id}", h.HandleDeleteBook)
	mux.HandleFunc("PATCH /api/books/{id}/status", h.HandleUpdateStatus)
	mux.HandleFunc("PATCH /api/books/{id}/loan", h.HandleUpdateLoan)
	mux.HandleFunc("GET /api/books/{id}/reading-card", h.HandleReadingCard)
	mux.HandleFunc("GET /api", h.HandleInfo)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			h.logger.Error("Unable to write healthcheck", "err", err)
		}
	})
	if h.opts.StaticDir != "" {
		mux.HandleFunc("GET /", h.HandleStatic)
	} else {
		mux.HandleFunc("GET /{$}", h.HandleInfo)
	}
	return mux
}

// HandleInfo describes the API
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	version := h.opts.Version
	if version == "" {
		version = "dev"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Arcana API",
		"version":  version,
		"features": []string{"bulk-shelf-scan", "family-profiles", "anti-spoiler"},
	})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, code int, data any) {
	h.writeJSON(w, code, dataResponse{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		h.logger.Error(message, "status", code)
	} else {
		h.logger.Debug(message, "status", code)
	}
	h.writeJSON(w, code, errorResponse{Success: false, Message: message})
}
