// Package readingcard generates reading cards for books the family has read.
package readingcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/providers"
)

const prompt = `Write a reading card for this book:
- Title: %s
- Author: %s

Return ONLY raw JSON, no Markdown:
{
  "summary": "an in-depth summary in 5 to 7 sentences",
  "themes": ["theme 1", "theme 2", "theme 3"],
  "discussionQuestions": ["a question a child could answer?", "question 2?", "question 3?"],
  "readingLevel": "recommended reader age, e.g. 8-12 years or Adult"
}`

// DefaultModel returns the model used for reading cards when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-pro"
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

// Generator asks an LLM for reading cards
type Generator struct {
	provider providers.Provider
	model    string
	logger   *slog.Logger
}

// New creates a Generator. An empty model selects the provider's default.
func New(provider providers.Provider, model string, logger *slog.Logger) *Generator {
	if model == "" {
		model = DefaultModel(provider.Name())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, model: model, logger: logger}
}

// Generate writes a reading card for title by author
func (g *Generator) Generate(ctx context.Context, title, author string) (*models.ReadingCard, error) {
	content, err := g.provider.ExtractText(ctx, providers.Config{
		Model:       g.model,
		Temperature: 0.7,
		Prompt:      fmt.Sprintf(prompt, title, author),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reading card for %q: %w", title, err)
	}

	var card models.ReadingCard
	if err := providers.DecodeJSON(content, &card); err != nil {
		g.logger.Warn("Unparseable reading card", "title", title, "err", err)
		return nil, fmt.Errorf("decode reading card for %q: %w", title, err)
	}
	card.Summary = strings.TrimSpace(card.Summary)
	if card.Summary == "" {
		return nil, errors.New("reading card has no summary")
	}
	return &card, nil
}
