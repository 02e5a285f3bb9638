package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/storage"
)

type listResponse struct {
	Success bool `json:"success"`
	*storage.Page
}

// HandleListBooks lists the catalog. Query parameters: status, owner,
// category, author, q, page and limit.
func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.Filter{
		Category: q.Get("category"),
		Author:   q.Get("author"),
		Search:   q.Get("q"),
		Page:     atoiOrZero(q.Get("page")),
		Limit:    atoiOrZero(q.Get("limit")),
	}
	if s := q.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	if o := q.Get("owner"); o != "" {
		owner, err := h.parseOwner(o)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Owner = owner
	}

	page, err := h.books.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Failed to fetch books: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Success: true, Page: page})
}

// HandleFilterOptions returns the values the list filters accept
func (h *Handler) HandleFilterOptions(w http.ResponseWriter, r *http.Request) {
	categories, authors, err := h.books.FilterOptions(r.Context())
	if err != nil {
		h.writeError(w, "Failed to fetch filter options: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeData(w, http.StatusOK, map[string]any{
		"categories": categories,
		"authors":    authors,
		"statuses":   []models.Status{models.StatusToRead, models.StatusReading, models.StatusRead, models.StatusWishlist},
		"owners":     h.owners(),
	})
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.getBookOrError(w, r)
	if !ok {
		return
	}
	h.writeData(w, http.StatusOK, book)
}

type createBookRequest struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	ISBN        string   `json:"isbn"`
	Publisher   string   `json:"publisher"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	CoverURL    string   `json:"coverUrl"`
	Status      string   `json:"status"`
	Owner       string   `json:"owner"`
}

// HandleCreateBook adds a book by hand, e.g. to the wishlist. Adding a book
// that is already catalogued creates the next copy.
func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	entry := &models.CatalogEntry{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		ISBN:        strings.TrimSpace(req.ISBN),
		Publisher:   strings.TrimSpace(req.Publisher),
		Description: req.Description,
		Categories:  req.Categories,
		CoverURL:    req.CoverURL,
		Status:      models.StatusToRead,
	}
	if entry.Title == "" || entry.Author == "" {
		h.writeError(w, "title and author are required", http.StatusBadRequest)
		return
	}
	if req.Status != "" {
		status, err := models.ParseStatus(req.Status)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		entry.Status = status
	}
	owner, err := h.parseOwner(req.Owner)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry.Owner = owner

	copyNumber, err := h.books.NextCopyNumber(r.Context(), entry.Title, entry.Author)
	if err != nil {
		h.writeError(w, "Failed to create book: "+err.Error(), http.StatusInternalServerError)
		return
	}
	entry.CopyNumber = copyNumber

	if err := h.books.Create(r.Context(), entry); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			h.writeError(w, "This copy was just added, try again", http.StatusConflict)
			return
		}
		h.writeError(w, "Failed to create book: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeData(w, http.StatusCreated, entry)
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, "Failed to delete book", err)
		return
	}
	h.writeJSON(w, http.StatusOK, errorResponse{Success: true, Message: "Book deleted"})
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	book, err := h.books.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.writeStoreError(w, "Failed to update status", err)
		return
	}
	h.writeData(w, http.StatusOK, book)
}

// HandleUpdateLoan lends a book to loanedTo, or marks it returned when
// loanedTo is empty.
func (h *Handler) HandleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanedTo string `json:"loanedTo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	book, err := h.books.UpdateLoan(r.Context(), r.PathValue("id"), req.LoanedTo)
	if err != nil {
		h.writeStoreError(w, "Failed to update loan", err)
		return
	}
	h.writeData(w, http.StatusOK, book)
}

// HandleReadingCard returns the reading card of a book the family has read,
// generating it on first request.
func (h *Handler) HandleReadingCard(w http.ResponseWriter, r *http.Request) {
	book, ok := h.getBookOrError(w, r)
	if !ok {
		return
	}
	if book.Status != models.StatusRead {
		h.writeError(w, "Reading card only available for books marked as read", http.StatusForbidden)
		return
	}
	if book.ReadingCard != nil {
		h.writeData(w, http.StatusOK, book.ReadingCard)
		return
	}
	if h.cards == nil {
		h.writeError(w, "Reading cards are not configured", http.StatusServiceUnavailable)
		return
	}

	card, err := h.cards.Generate(r.Context(), book.Title, book.Author)
	if err != nil {
		h.writeError(w, "Failed to generate reading card: "+err.Error(), http.StatusBadGateway)
		return
	}
	if _, err := h.books.SaveReadingCard(r.Context(), book.ID, card); err != nil {
		h.logger.Warn("Failed to cache reading card", "id", book.ID, "err", err)
	}
	h.writeData(w, http.StatusOK, card)
}

func (h *Handler) getBookOrError(w http.ResponseWriter, r *http.Request) (*models.CatalogEntry, bool) {
	book, err := h.books.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "Failed to fetch book", err)
		return nil, false
	}
	return book, true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Book not found", http.StatusNotFound)
		return
	}
	h.writeError(w, message+": "+err.Error(), http.StatusInternalServerError)
}

func (h *Handler) owners() []models.Owner {
	if len(h.opts.Owners) == 0 {
		return []models.Owner{models.OwnerFamily}
	}
	return h.opts.Owners
}

func (h *Handler) parseOwner(name string) (models.Owner, error) {
	owner := models.Owner(strings.ToUpper(strings.TrimSpace(name)))
	if owner == "" {
		return models.OwnerFamily, nil
	}
	for _, o := range h.owners() {
		if o == owner {
			return owner, nil
		}
	}
	return "", errors.New("unknown owner " + strconv.Quote(name))
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
