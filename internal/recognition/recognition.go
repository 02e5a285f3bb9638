// Package recognition turns a shelf photo into detected book stubs using a
// vision-capable LLM.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/providers"
)

// Error reports a recognition call that failed or returned unusable output.
// It is fatal to a scan.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recognition via %s failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DefaultModel returns the vision model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-flash"
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

// Service identifies the books visible on a shelf photo
type Service struct {
	provider    providers.Provider
	model       string
	temperature float64
	logger      *slog.Logger
}

// Option customises a Service
type Option func(*Service)

// WithModel overrides the provider's default model
func WithModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a recognition service on top of an LLM provider
func NewService(provider providers.Provider, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		model:       DefaultModel(provider.Name()),
		temperature: 0.1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the name of the backing provider
func (s *Service) Provider() string { return s.provider.Name() }

// Model returns the model used for recognition
func (s *Service) Model() string { return s.model }

// Identify returns every book the model could read on the photo, in the order
// the model listed them. An empty slice means nothing legible was found.
func (s *Service) Identify(ctx context.Context, image []byte, mimeType string) ([]models.DetectedStub, error) {
	if len(image) == 0 {
		return nil, &Error{Provider: s.provider.Name(), Err: errors.New("empty image")}
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	s.logger.Info("Identifying books on shelf", "provider", s.provider.Name(), "model", s.model, "bytes", len(image))

	content, err := s.provider.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      shelfPrompt,
		Image:       image,
		MIMEType:    mimeType,
		JSON:        true,
		Schema:      shelfSchema,
	})
	if err != nil {
		return nil, &Error{Provider: s.provider.Name(), Err: err}
	}

	stubs, err := ParseStubs(content, s.logger)
	if err != nil {
		return nil, &Error{Provider: s.provider.Name(), Err: err}
	}

	s.logger.Info("Books identified on shelf", "provider", s.provider.Name(), "count", len(stubs))
	return stubs, nil
}

type rawStub struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Confidence  *float64 `json:"confidence"`
	Publisher   string   `json:"publisher"`
	Collection  string   `json:"collection"`
	ISBN        string   `json:"isbn"`
	VisualHints string   `json:"visualHints"`
}

// ParseStubs decodes a model answer into validated stubs. The answer must be a
// JSON array, or a single object which is treated as a one-element array.
// Items that fail validation are dropped and logged; a payload that is not
// JSON of that shape is an error.
func ParseStubs(content string, logger *slog.Logger) ([]models.DetectedStub, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var payload json.RawMessage
	if err := providers.DecodeJSON(content, &payload); err != nil {
		return nil, fmt.Errorf("malformed recognition output: %w", err)
	}

	payload = bytes.TrimSpace(payload)
	var items []rawStub
	switch {
	case len(payload) > 0 && payload[0] == '[':
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, fmt.Errorf("unexpected recognition output shape: %w", err)
		}
	case len(payload) > 0 && payload[0] == '{':
		var single rawStub
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, fmt.Errorf("unexpected recognition output shape: %w", err)
		}
		logger.Warn("Recognition returned a single object, wrapping it")
		items = []rawStub{single}
	default:
		return nil, fmt.Errorf("recognition output is neither an array nor an object")
	}

	stubs := make([]models.DetectedStub, 0, len(items))
	for i, item := range items {
		if item.Confidence == nil {
			logger.Warn("Dropping detected book without confidence", "index", i, "title", item.Title)
			continue
		}
		stub, err := models.DetectedStub{
			Title:       item.Title,
			Author:      item.Author,
			Confidence:  *item.Confidence,
			Publisher:   item.Publisher,
			Collection:  item.Collection,
			ISBN:        item.ISBN,
			VisualHints: item.VisualHints,
		}.Clean()
		if err != nil {
			logger.Warn("Dropping invalid detected book", "index", i, "err", err)
			continue
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}
