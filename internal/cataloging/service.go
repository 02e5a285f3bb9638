// Package cataloging reconciles a shelf photo with the catalog: it recognizes
// the books on the photo, enriches each one from Google Books, and adds the
// ones that are confidently identified and not already catalogued.
package cataloging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/arcana-family/arcana/internal/lookup"
	"github.com/arcana-family/arcana/internal/matching"
	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// AcceptThreshold is the lowest final confidence at which a book is
	// catalogued.
	AcceptThreshold = 0.70

	// DefaultConcurrency bounds how many stubs are enriched at once.
	DefaultConcurrency = 4

	epsilon = 1e-9
)

// Recognizer detects the books on a shelf photo
type Recognizer interface {
	Identify(ctx context.Context, image []byte, mimeType string) ([]models.DetectedStub, error)
}

// Lookup finds metadata candidates for a book
type Lookup interface {
	Lookup(ctx context.Context, q lookup.Query) (lookup.Result, error)
}

// Catalog is the part of the store the pipeline writes to
type Catalog interface {
	FindDuplicate(ctx context.Context, title, author string) (*models.CatalogEntry, error)
	Create(ctx context.Context, entry *models.CatalogEntry) error
}

// Service runs shelf scans
type Service struct {
	recognizer  Recognizer
	lookup      Lookup
	catalog     Catalog
	concurrency int
	logger      *slog.Logger
	locks       *keyedMutex
}

// Option customises a Service
type Option func(*Service)

// WithConcurrency sets how many stubs are enriched in parallel
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the pipeline to its collaborators
func NewService(recognizer Recognizer, lookup Lookup, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		recognizer:  recognizer,
		lookup:      lookup,
		catalog:     catalog,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanOption customises a single scan
type ScanOption func(*ScanConfig)

// ScanConfig is the resolved set of scan options
type ScanConfig struct {
	Progress func(models.ScanProgress)
}

// NewScanConfig applies opts
func NewScanConfig(opts ...ScanOption) ScanConfig {
	var cfg ScanConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithProgress registers a callback receiving progress events. Calls are
// serialized.
func WithProgress(fn func(models.ScanProgress)) ScanOption {
	return func(c *ScanConfig) { c.Progress = fn }
}

type disposition int

const (
	skipped disposition = iota
	added
	duplicate
)

// outcome is what happened to one stub
type outcome struct {
	disposition disposition
	book        models.ReportedBook
}

// ScanShelf runs the whole pipeline on one photo. Only a recognition failure
// (or a cancelled context) is returned as an error; every per-book failure is
// counted as skipped.
func (s *Service) ScanShelf(ctx context.Context, image []byte, mimeType string, opts ...ScanOption) (*models.ScanResult, error) {
	report := newReporter(NewScanConfig(opts...).Progress)

	report.send(models.ScanProgress{Step: models.StepAnalyzing, Message: "Analyzing shelf photo", Progress: 20})
	stubs, err := s.recognizer.Identify(ctx, image, mimeType)
	if err != nil {
		report.send(models.ScanProgress{Step: models.StepError, Message: err.Error()})
		return nil, err
	}

	if len(stubs) == 0 {
		result := &models.ScanResult{Success: true, Message: "no books detected", Books: []models.ReportedBook{}}
		report.send(models.ScanProgress{Step: models.StepComplete, Message: result.Message, Progress: 100})
		return result, nil
	}

	report.send(models.ScanProgress{
		Step:       models.StepIdentifying,
		Message:    fmt.Sprintf("Identified %d book(s)", len(stubs)),
		Progress:   40,
		BooksFound: len(stubs),
	})

	outcomes := make([]outcome, len(stubs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, stub := range stubs {
		g.Go(func() error {
			outcomes[i] = s.process(gctx, stub)
			report.settled(len(stubs))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		report.send(models.ScanProgress{Step: models.StepError, Message: err.Error()})
		return nil, err
	}

	result := aggregate(len(stubs), outcomes)
	report.send(models.ScanProgress{Step: models.StepComplete, Message: result.Message, Progress: 100, BooksFound: len(stubs)})
	return result, nil
}

func (s *Service) process(ctx context.Context, stub models.DetectedStub) outcome {
	logger := s.logger.With("title", stub.Title, "author", stub.Author)

	enrichment := s.enrich(ctx, stub, logger)
	final, ok := accept(stub.Confidence, enrichment.Confidence)
	if !ok {
		logger.Debug("Skipping low confidence book",
			"stub_confidence", stub.Confidence,
			"enrichment_confidence", enrichment.Confidence,
			"final", final)
		return outcome{disposition: skipped}
	}

	unlock := s.locks.lock(lockKey(stub))
	defer unlock()

	existing, err := s.catalog.FindDuplicate(ctx, stub.Title, stub.Author)
	switch {
	case err == nil:
		logger.Info("Book already catalogued", "id", existing.ID, "copy", existing.CopyNumber)
		return duplicateOutcome(existing, final)
	case !errors.Is(err, storage.ErrNotFound):
		logger.Error("Duplicate check failed", "err", err)
		return outcome{disposition: skipped}
	}

	entry := newEntry(stub, enrichment.Best, final)
	if err := s.catalog.Create(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			if existing, ferr := s.catalog.FindDuplicate(ctx, stub.Title, stub.Author); ferr == nil {
				logger.Info("Book catalogued concurrently", "id", existing.ID)
				return duplicateOutcome(existing, final)
			}
		}
		logger.Error("Failed to save book", "err", err)
		return outcome{disposition: skipped}
	}

	logger.Info("Book added", "id", entry.ID, "confidence", final)
	return outcome{
		disposition: added,
		book: models.ReportedBook{
			ID:         entry.ID,
			Title:      entry.Title,
			Author:     entry.Author,
			CoverURL:   entry.CoverURL,
			Confidence: final,
			IsNewBook:  true,
			CopyNumber: entry.CopyNumber,
		},
	}
}

func (s *Service) enrich(ctx context.Context, stub models.DetectedStub, logger *slog.Logger) models.EnrichmentResult {
	res, err := s.lookup.Lookup(ctx, lookup.Query{
		Title:     stub.Title,
		Author:    stub.Author,
		ISBN:      stub.ISBN,
		Publisher: stub.Publisher,
	})
	if err != nil {
		// Lookup failures only cost the book its enrichment points.
		logger.Warn("Metadata lookup failed", "err", err)
		return models.EnrichmentResult{}
	}
	if res.ISBNMatch && len(res.Candidates) > 0 {
		return matching.Exact(res.Candidates[0])
	}
	return matching.Score(stub, res.Candidates)
}

// accept averages the two confidences and applies the acceptance floor.
func accept(stubConfidence, enrichmentConfidence float64) (float64, bool) {
	final := (stubConfidence + enrichmentConfidence) / 2
	if final < AcceptThreshold-epsilon {
		return final, false
	}
	return math.Max(final, AcceptThreshold), true
}

func newEntry(stub models.DetectedStub, best *models.MetadataCandidate, final float64) *models.CatalogEntry {
	entry := &models.CatalogEntry{
		Title:           stub.Title,
		Author:          stub.Author,
		ISBN:            stub.ISBN,
		Publisher:       stub.Publisher,
		Status:          models.StatusToRead,
		Owner:           models.OwnerFamily,
		CopyNumber:      1,
		ConfidenceScore: &final,
	}
	if best == nil {
		return entry
	}
	if best.ISBN != "" {
		entry.ISBN = best.ISBN
	}
	if best.Publisher != "" {
		entry.Publisher = best.Publisher
	}
	entry.PublishedDate = best.PublishedDate
	entry.Description = best.Description
	entry.PageCount = best.PageCount
	entry.Categories = best.Categories
	entry.CoverURL = best.CoverURL
	entry.GoogleBooksID = best.ExternalID
	return entry
}

func duplicateOutcome(existing *models.CatalogEntry, final float64) outcome {
	return outcome{
		disposition: duplicate,
		book: models.ReportedBook{
			ID:         existing.ID,
			Title:      existing.Title,
			Author:     existing.Author,
			CoverURL:   existing.CoverURL,
			Confidence: final,
			IsNewBook:  false,
			CopyNumber: existing.CopyNumber,
		},
	}
}

func aggregate(detected int, outcomes []outcome) *models.ScanResult {
	result := &models.ScanResult{
		Success: true,
		Books:   []models.ReportedBook{},
		Stats:   models.ScanStats{Detected: detected},
	}
	for _, o := range outcomes {
		switch o.disposition {
		case added:
			result.Stats.Added++
			result.Books = append(result.Books, o.book)
		case duplicate:
			result.Stats.Duplicates++
			result.Books = append(result.Books, o.book)
		default:
			result.Stats.Skipped++
		}
	}
	result.Message = summary(result.Stats)
	return result
}

func summary(stats models.ScanStats) string {
	var parts []string
	if stats.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d new book(s) added", stats.Added))
	}
	if stats.Duplicates > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate copy(ies) detected", stats.Duplicates))
	}
	if stats.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", stats.Skipped))
	}
	if len(parts) == 0 {
		return "no books added"
	}
	return strings.Join(parts, ", ")
}
