package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// ErrInvalidStub is returned when a recognition result cannot be used as a stub
var ErrInvalidStub = errors.New("invalid detected stub")

// Status is the reading status of a catalog entry
type Status string

const (
	StatusToRead   Status = "TO_READ"
	StatusReading  Status = "READING"
	StatusRead     Status = "READ"
	StatusWishlist Status = "WISHLIST"
)

// ParseStatus validates a status value coming from a request or a config file
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusToRead, StatusReading, StatusRead, StatusWishlist:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Owner is the household member a book belongs to
type Owner string

// OwnerFamily is the shared owner every household has
const OwnerFamily Owner = "FAMILY"

// DetectedStub is one book the recognition service believes is visible on a shelf photo
type DetectedStub struct {
	Title       string  `json:"title" yaml:"title"`
	Author      string  `json:"author" yaml:"author"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Publisher   string  `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Collection  string  `json:"collection,omitempty" yaml:"collection,omitempty"`
	ISBN        string  `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	VisualHints string  `json:"visualHints,omitempty" yaml:"visual_hints,omitempty"`
}

// Clean trims every field and rejects stubs without a title or author, or
// with a confidence outside [0,1].
func (s DetectedStub) Clean() (DetectedStub, error) {
	s.Title = strings.TrimSpace(s.Title)
	s.Author = strings.TrimSpace(s.Author)
	s.Publisher = strings.TrimSpace(s.Publisher)
	s.Collection = strings.TrimSpace(s.Collection)
	s.ISBN = strings.TrimSpace(s.ISBN)
	s.VisualHints = strings.TrimSpace(s.VisualHints)

	if s.Title == "" {
		return s, fmt.Errorf("%w: missing title", ErrInvalidStub)
	}
	if s.Author == "" {
		return s, fmt.Errorf("%w: missing author for %q", ErrInvalidStub, s.Title)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return s, fmt.Errorf("%w: confidence %v out of range for %q", ErrInvalidStub, s.Confidence, s.Title)
	}
	return s, nil
}

// MetadataCandidate is a volume returned by the metadata lookup service
type MetadataCandidate struct {
	ExternalID    string   `json:"externalId"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Categories    []string `json:"categories"`
	ISBN          string   `json:"isbn,omitempty"`
	CoverURL      string   `json:"coverUrl,omitempty"`
}

// EnrichmentResult is the scorer's verdict for one stub
type EnrichmentResult struct {
	Valid      bool               `json:"valid"`
	Confidence float64            `json:"confidence"`
	Best       *MetadataCandidate `json:"bestCandidate,omitempty"`
}

// ReadingCard is the generated study sheet for a book that has been read
type ReadingCard struct {
	Summary             string   `json:"summary" yaml:"summary"`
	Themes              []string `json:"themes" yaml:"themes"`
	DiscussionQuestions []string `json:"discussionQuestions" yaml:"discussion_questions"`
	ReadingLevel        string   `json:"readingLevel" yaml:"reading_level"`
}

// CatalogEntry is a persisted book
type CatalogEntry struct {
	bun.BaseModel `bun:"table:books,alias:b" json:"-" yaml:"-"`

	ID              string       `bun:"id,pk" json:"id" yaml:"id"`
	Title           string       `bun:"title,notnull" json:"title" yaml:"title"`
	Author          string       `bun:"author,notnull" json:"author" yaml:"author"`
	ISBN            string       `bun:"isbn" json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Publisher       string       `bun:"publisher" json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedDate   string       `bun:"published_date" json:"publishedDate,omitempty" yaml:"published_date,omitempty"`
	Description     string       `bun:"description" json:"description,omitempty" yaml:"description,omitempty"`
	PageCount       int          `bun:"page_count" json:"pageCount,omitempty" yaml:"page_count,omitempty"`
	Categories      []string     `bun:"categories" json:"categories" yaml:"categories,omitempty"`
	CoverURL        string       `bun:"cover_url" json:"coverUrl,omitempty" yaml:"cover_url,omitempty"`
	GoogleBooksID   string       `bun:"google_books_id" json:"googleBooksId,omitempty" yaml:"google_books_id,omitempty"`
	Status          Status       `bun:"status,notnull" json:"status" yaml:"status"`
	Owner           Owner        `bun:"owner,notnull" json:"owner" yaml:"owner"`
	CopyNumber      int          `bun:"copy_number,notnull" json:"copyNumber" yaml:"copy_number"`
	ConfidenceScore *float64     `bun:"confidence_score" json:"confidenceScore,omitempty" yaml:"confidence_score,omitempty"`
	ReadingCard     *ReadingCard `bun:"reading_card" json:"readingCard,omitempty" yaml:"reading_card,omitempty"`
	BorrowedBy      string       `bun:"borrowed_by" json:"borrowedBy,omitempty" yaml:"borrowed_by,omitempty"`
	BorrowedAt      *time.Time   `bun:"borrowed_at,nullzero" json:"borrowedAt,omitempty" yaml:"borrowed_at,omitempty"`
	CreatedAt       time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt" yaml:"created_at"`
	UpdatedAt       time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt" yaml:"updated_at"`

	// Normalized title and author used for duplicate search.
	TitleKey  string `bun:"title_key,notnull" json:"-" yaml:"-"`
	AuthorKey string `bun:"author_key,notnull" json:"-" yaml:"-"`
}

// ScanStats counts what happened to every stub of one scan
type ScanStats struct {
	Detected   int `json:"detected" yaml:"detected"`
	Added      int `json:"added" yaml:"added"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Skipped    int `json:"skipped" yaml:"skipped"`
}

// Balanced reports whether every detected stub was accounted for exactly once
func (s ScanStats) Balanced() bool {
	return s.Detected == s.Added+s.Duplicates+s.Skipped
}

// ReportedBook is a book listed in a scan result, either newly added or an existing duplicate
type ReportedBook struct {
	ID         string  `json:"id" yaml:"id"`
	Title      string  `json:"title" yaml:"title"`
	Author     string  `json:"author" yaml:"author"`
	CoverURL   string  `json:"coverUrl,omitempty" yaml:"cover_url,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	IsNewBook  bool    `json:"isNewBook" yaml:"is_new_book"`
	CopyNumber int     `json:"copyNumber,omitempty" yaml:"copy_number,omitempty"`
}

// ScanResult is the aggregated report of one shelf scan
type ScanResult struct {
	Success bool           `json:"success" yaml:"success"`
	Message string         `json:"message" yaml:"message"`
	Books   []ReportedBook `json:"books" yaml:"books"`
	Stats   ScanStats      `json:"stats" yaml:"stats"`
}

// ScanStep names a stage of a running scan as shown to the client
type ScanStep string

const (
	StepUploading   ScanStep = "uploading"
	StepAnalyzing   ScanStep = "analyzing"
	StepIdentifying ScanStep = "identifying"
	StepEnriching   ScanStep = "enriching"
	StepComplete    ScanStep = "complete"
	StepError       ScanStep = "error"
)

// ScanProgress is one progress event emitted while a scan runs
type ScanProgress struct {
	Step       ScanStep `json:"step"`
	Message    string   `json:"message"`
	Progress   int      `json:"progress"`
	BooksFound int      `json:"booksFound,omitempty"`
}
