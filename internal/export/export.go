// Package export dumps the catalog to Parquet or YAML.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Formats lists the supported export formats
var Formats = []string{"parquet", "yaml"}

// Record is one catalog row in a Parquet export
type Record struct {
	ID              string   `parquet:"id"`
	Title           string   `parquet:"title"`
	Author          string   `parquet:"author"`
	ISBN            string   `parquet:"isbn"`
	Publisher       string   `parquet:"publisher"`
	PublishedDate   string   `parquet:"published_date"`
	PageCount       int32    `parquet:"page_count"`
	Categories      []string `parquet:"categories,list"`
	CoverURL        string   `parquet:"cover_url"`
	GoogleBooksID   string   `parquet:"google_books_id"`
	Status          string   `parquet:"status"`
	Owner           string   `parquet:"owner"`
	CopyNumber      int32    `parquet:"copy_number"`
	ConfidenceScore *float64 `parquet:"confidence_score,optional"`
	BorrowedBy      string   `parquet:"borrowed_by"`
	CreatedAt       string   `parquet:"created_at"`
}

// NewRecord flattens a catalog entry
func NewRecord(e models.CatalogEntry) Record {
	return Record{
		ID:              e.ID,
		Title:           e.Title,
		Author:          e.Author,
		ISBN:            e.ISBN,
		Publisher:       e.Publisher,
		PublishedDate:   e.PublishedDate,
		PageCount:       int32(e.PageCount),
		Categories:      e.Categories,
		CoverURL:        e.CoverURL,
		GoogleBooksID:   e.GoogleBooksID,
		Status:          string(e.Status),
		Owner:           string(e.Owner),
		CopyNumber:      int32(e.CopyNumber),
		ConfidenceScore: e.ConfidenceScore,
		BorrowedBy:      e.BorrowedBy,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Write writes entries to w in format
func Write(w io.Writer, format string, entries []models.CatalogEntry) error {
	switch format {
	case "parquet":
		return WriteParquet(w, entries)
	case "yaml", "yml":
		return WriteYAML(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q (supported: %v)", format, Formats)
	}
}

// WriteParquet writes one row per entry
func WriteParquet(w io.Writer, entries []models.CatalogEntry) error {
	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = NewRecord(e)
	}

	writer := parquet.NewGenericWriter[Record](w)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

type yamlCatalog struct {
	ExportedAt string                `yaml:"exported_at"`
	Count      int                   `yaml:"count"`
	Books      []models.CatalogEntry `yaml:"books"`
}

// WriteYAML writes the entries as a YAML document
func WriteYAML(w io.Writer, entries []models.CatalogEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := yamlCatalog{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(entries),
		Books:      entries,
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}
