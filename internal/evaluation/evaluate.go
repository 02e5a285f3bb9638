// Package evaluation measures how well book recognition reproduces labeled
// shelf photos.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	"golang.org/x/sync/errgroup"
)

// MatchThreshold is the similarity title and author must both reach for a
// detected book to count as an expected one.
const MatchThreshold = 0.8

// Recognizer detects the books on a shelf photo
type Recognizer interface {
	Identify(ctx context.Context, image []byte, mimeType string) ([]models.DetectedStub, error)
}

// BookMatch pairs an expected book with the detection that reproduced it
type BookMatch struct {
	Title      FieldMatch `yaml:"title"`
	Author     FieldMatch `yaml:"author"`
	Confidence float64    `yaml:"confidence"`
}

// ShelfResult is the evaluation of one shelf photo
type ShelfResult struct {
	Image          string                `yaml:"image"`
	Expected       int                   `yaml:"expected"`
	Detected       int                   `yaml:"detected"`
	Matched        int                   `yaml:"matched"`
	Matches        []BookMatch           `yaml:"matches,omitempty"`
	Missed         []ExpectedBook        `yaml:"missed,omitempty"`
	Spurious       []models.DetectedStub `yaml:"spurious,omitempty"`
	ProcessingTime time.Duration         `yaml:"processing_time"`
	Error          string                `yaml:"error,omitempty"`

	confidences []float64
}

// Runner evaluates a recognizer against a dataset
type Runner struct {
	recognizer  Recognizer
	concurrency int
	logger      *slog.Logger
}

// NewRunner creates a Runner recognizing at most concurrency shelves at once
func NewRunner(recognizer Recognizer, concurrency int, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{recognizer: recognizer, concurrency: concurrency, logger: logger}
}

// Run recognizes every shelf and compares the detections with the labels.
// A shelf that fails is recorded with its error; only a cancelled context
// stops the run.
func (r *Runner) Run(ctx context.Context, ds *Dataset) ([]ShelfResult, error) {
	results := make([]ShelfResult, len(ds.Shelves))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, shelf := range ds.Shelves {
		g.Go(func() error {
			r.logger.Info("Evaluating shelf", "image", shelf.Image, "progress", fmt.Sprintf("%d/%d", i+1, len(ds.Shelves)))
			results[i] = r.evaluateShelf(gctx, shelf)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) evaluateShelf(ctx context.Context, shelf Shelf) ShelfResult {
	result := ShelfResult{Image: shelf.Image, Expected: len(shelf.Books)}

	data, err := os.ReadFile(shelf.Image)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		return result
	}

	start := time.Now()
	stubs, err := r.recognizer.Identify(ctx, data, utils.ImageMIMEType(shelf.Image, data))
	result.ProcessingTime = time.Since(start)
	if err != nil {
		r.logger.Warn("Recognition failed", "image", shelf.Image, "err", err)
		result.Error = err.Error()
		return result
	}

	result.Detected = len(stubs)
	matchShelf(&result, shelf.Books, stubs)
	return result
}

// matchShelf pairs each expected book, in order, with the best remaining
// detection that clears MatchThreshold on both title and author.
func matchShelf(result *ShelfResult, expected []ExpectedBook, stubs []models.DetectedStub) {
	used := make([]bool, len(stubs))
	for _, book := range expected {
		best, bestScore := -1, 0.0
		var bestMatch BookMatch
		for i, stub := range stubs {
			if used[i] {
				continue
			}
			title := CompareField(book.Title, stub.Title)
			author := CompareField(book.Author, stub.Author)
			if title.Score < MatchThreshold || author.Score < MatchThreshold {
				continue
			}
			if score := title.Score + author.Score; score > bestScore {
				best, bestScore = i, score
				bestMatch = BookMatch{Title: title, Author: author, Confidence: stub.Confidence}
			}
		}
		if best < 0 {
			result.Missed = append(result.Missed, book)
			continue
		}
		used[best] = true
		result.Matched++
		result.Matches = append(result.Matches, bestMatch)
	}

	for i, stub := range stubs {
		result.confidences = append(result.confidences, stub.Confidence)
		if !used[i] {
			result.Spurious = append(result.Spurious, stub)
		}
	}
}
