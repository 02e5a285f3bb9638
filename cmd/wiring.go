package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcana-family/arcana/internal/cataloging"
	"github.com/arcana-family/arcana/internal/config"
	"github.com/arcana-family/arcana/internal/gemini"
	"github.com/arcana-family/arcana/internal/lookup"
	"github.com/arcana-family/arcana/internal/ollama"
	"github.com/arcana-family/arcana/internal/openai"
	"github.com/arcana-family/arcana/internal/providers"
	"github.com/arcana-family/arcana/internal/readingcard"
	"github.com/arcana-family/arcana/internal/recognition"
	"github.com/arcana-family/arcana/internal/storage"
)

// app holds the services a command needs. Fields a command did not ask for
// stay nil.
type app struct {
	store      *storage.Store
	provider   providers.Provider
	recognizer *recognition.Service
	pipeline   *cataloging.Service
	cards      *readingcard.Generator

	closers []func() error
}

type appNeeds struct {
	store    bool
	pipeline bool // implies store and recognizer
	llm      bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, needs appNeeds) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if needs.store || needs.pipeline {
		store, err := storage.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	if needs.llm || needs.pipeline {
		if err := cfg.RequireProviderCredentials(); err != nil {
			return nil, err
		}
		provider, closeProvider, err := newProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.provider = provider
		if closeProvider != nil {
			a.closers = append(a.closers, closeProvider)
		}
		a.recognizer = recognition.NewService(provider,
			recognition.WithModel(cfg.Model),
			recognition.WithTemperature(cfg.Temperature),
			recognition.WithLogger(logger.With("component", "recognition")))
		a.cards = readingcard.New(provider, cfg.ReadingCardModel, logger.With("component", "readingcard"))
	}

	if needs.pipeline {
		books, err := lookup.New(ctx, lookup.Config{
			APIKey:     cfg.GoogleBooksAPIKey,
			Endpoint:   cfg.GoogleBooksEndpoint,
			MaxResults: cfg.GoogleBooksMaxResults,
			Logger:     logger.With("component", "lookup"),
		})
		if err != nil {
			return nil, err
		}
		a.pipeline = cataloging.NewService(a.recognizer, books, a.store,
			cataloging.WithConcurrency(cfg.ScanConcurrency),
			cataloging.WithLogger(logger.With("component", "pipeline")))
	}

	return a, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (providers.Provider, func() error, error) {
	switch cfg.Provider {
	case "gemini":
		g, err := gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case "openai":
		o, err := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return o, nil, nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, nil), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// Close releases everything newApp opened, newest first
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
