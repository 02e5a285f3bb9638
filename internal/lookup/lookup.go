// Package lookup finds candidate volumes for a detected book in Google Books.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	books "google.golang.org/api/books/v1"
	"google.golang.org/api/option"
)

// Query describes the book to look up. Title and Author are required, ISBN and
// Publisher narrow the search when present.
type Query struct {
	Title     string
	Author    string
	ISBN      string
	Publisher string
}

// Result holds the candidates of the first strategy that found any
type Result struct {
	Candidates []models.MetadataCandidate
	// ISBNMatch is set when the candidates came from an exact ISBN search.
	ISBNMatch bool
	Strategy  string
}

// Error reports that every applicable strategy failed for a query.
// Callers treat it as "no candidates".
type Error struct {
	Query Query
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lookup %q by %q: %v", e.Query.Title, e.Query.Author, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// strategy is one step of query relaxation.
type strategy struct {
	name    string
	isbn    bool
	applies func(Query) bool
	query   func(Query) string
}

// strategies are tried in order until one returns candidates.
var strategies = []strategy{
	{
		name:    "isbn",
		isbn:    true,
		applies: func(q Query) bool { return utils.CleanISBN(q.ISBN) != "" },
		query:   func(q Query) string { return "isbn:" + utils.CleanISBN(q.ISBN) },
	},
	{
		name:    "title-author-publisher",
		applies: func(q Query) bool { return q.Publisher != "" },
		query: func(q Query) string {
			return fmt.Sprintf("intitle:%s+inauthor:%s+inpublisher:%s", q.Title, q.Author, q.Publisher)
		},
	},
	{
		name:    "title-author",
		applies: func(Query) bool { return true },
		query:   func(q Query) string { return fmt.Sprintf("intitle:%s+inauthor:%s", q.Title, q.Author) },
	},
}

// Config configures a Client
type Config struct {
	// APIKey is optional; anonymous calls have a lower quota.
	APIKey string
	// Endpoint overrides the Google Books base URL.
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client queries Google Books
type Client struct {
	volumes    *books.VolumesService
	maxResults int64
	logger     *slog.Logger
}

// New creates a Google Books client
func New(ctx context.Context, cfg Config) (*Client, error) {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout:   base.Timeout,
		Transport: &keyTransport{base: rt, apiKey: cfg.APIKey},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google books service: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{volumes: svc.Volumes, maxResults: int64(maxResults), logger: logger}, nil
}

// Lookup tries each applicable strategy in turn and returns the candidates of
// the first one with results, in Google's ranking order. A strategy that
// errors is skipped. When nothing was found and at least one strategy failed,
// the last failure is returned as *Error.
func (c *Client) Lookup(ctx context.Context, q Query) (Result, error) {
	var lastErr error
	for _, s := range strategies {
		if !s.applies(q) {
			continue
		}

		candidates, err := c.search(ctx, s.query(q))
		if err != nil {
			c.logger.Warn("Google Books search failed, widening", "strategy", s.name, "title", q.Title, "err", err)
			lastErr = err
			continue
		}
		if len(candidates) == 0 {
			c.logger.Debug("No Google Books results, widening", "strategy", s.name, "title", q.Title)
			continue
		}

		return Result{Candidates: candidates, ISBNMatch: s.isbn, Strategy: s.name}, nil
	}

	if lastErr != nil {
		return Result{}, &Error{Query: q, Err: lastErr}
	}
	return Result{}, nil
}

func (c *Client) search(ctx context.Context, query string) ([]models.MetadataCandidate, error) {
	resp, err := c.volumes.List(query).MaxResults(c.maxResults).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	candidates := make([]models.MetadataCandidate, 0, len(resp.Items))
	for _, v := range resp.Items {
		if v == nil {
			continue
		}
		candidates = append(candidates, toCandidate(v))
	}
	return candidates, nil
}

// IsLookupError reports whether err came from Lookup exhausting its strategies
func IsLookupError(err error) bool {
	var lookupErr *Error
	return errors.As(err, &lookupErr)
}
