package cataloging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/arcana-family/arcana/internal/lookup"
	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/recognition"
	"github.com/arcana-family/arcana/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	stubs []models.DetectedStub
	err   error
}

func (f *fakeRecognizer) Identify(context.Context, []byte, string) ([]models.DetectedStub, error) {
	return f.stubs, f.err
}

// fakeLookup answers by title. Titles listed in failing return a lookup error.
type fakeLookup struct {
	results map[string]lookup.Result
	failing map[string]bool
}

func (f *fakeLookup) Lookup(_ context.Context, q lookup.Query) (lookup.Result, error) {
	if f.failing[q.Title] {
		return lookup.Result{}, &lookup.Error{Query: q, Err: errors.New("503 from upstream")}
	}
	return f.results[q.Title], nil
}

// brokenCatalog fails every write
type brokenCatalog struct{}

func (brokenCatalog) FindDuplicate(context.Context, string, string) (*models.CatalogEntry, error) {
	return nil, storage.ErrNotFound
}

func (brokenCatalog) Create(context.Context, *models.CatalogEntry) error {
	return errors.New("disk I/O error")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func exactCandidate(title, author string) models.MetadataCandidate {
	return models.MetadataCandidate{
		ExternalID:  "vol-" + title,
		Title:       title,
		Authors:     []string{author},
		Publisher:   "Pocket",
		Description: "About " + title,
		Categories:  []string{"Fiction"},
		ISBN:        "9782266320481",
		CoverURL:    "https://books.google.com/books/content?id=x&zoom=0",
	}
}

func newTestService(rec Recognizer, lk Lookup, cat Catalog) *Service {
	return NewService(rec, lk, cat, WithLogger(quietLogger()), WithConcurrency(4))
}

func TestScanShelfNoBooks(t *testing.T) {
	svc := newTestService(&fakeRecognizer{}, &fakeLookup{}, openStore(t))

	res, err := svc.ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "no books detected", res.Message)
	assert.Empty(t, res.Books)
	assert.Equal(t, models.ScanStats{}, res.Stats)
}

func TestScanShelfAddsConfidentMatch(t *testing.T) {
	store := openStore(t)
	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Dune", Author: "Frank Herbert", Confidence: 0.9}}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Dune": {Candidates: []models.MetadataCandidate{exactCandidate("Dune", "Frank Herbert")}},
	}}

	res, err := newTestService(rec, lk, store).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, models.ScanStats{Detected: 1, Added: 1}, res.Stats)
	assert.Equal(t, "1 new book(s) added", res.Message)
	require.Len(t, res.Books, 1)
	book := res.Books[0]
	assert.True(t, book.IsNewBook)
	assert.InDelta(t, 0.95, book.Confidence, 1e-9)
	assert.Equal(t, 1, book.CopyNumber)

	entry, err := store.Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", entry.Title)
	assert.Equal(t, "Pocket", entry.Publisher)
	assert.Equal(t, "vol-Dune", entry.GoogleBooksID)
	assert.Equal(t, []string{"Fiction"}, entry.Categories)
	assert.Equal(t, models.StatusToRead, entry.Status)
	assert.Equal(t, models.OwnerFamily, entry.Owner)
	require.NotNil(t, entry.ConfidenceScore)
	assert.InDelta(t, 0.95, *entry.ConfidenceScore, 1e-9)
}

func TestScanShelfSkipsUnmatchedLowConfidence(t *testing.T) {
	store := openStore(t)
	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Unknown Spine", Author: "Nobody", Confidence: 0.5}}}

	res, err := newTestService(rec, &fakeLookup{}, store).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, models.ScanStats{Detected: 1, Skipped: 1}, res.Stats)
	assert.Equal(t, "1 skipped", res.Message)
	assert.Empty(t, res.Books)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestScanShelfReportsDuplicate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	existing := &models.CatalogEntry{Title: "Le Petit Prince", Author: "Antoine de Saint-Exupéry"}
	require.NoError(t, store.Create(ctx, existing))

	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Petit Prince", Author: "Saint-Exupéry", Confidence: 0.9}}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Petit Prince": {Candidates: []models.MetadataCandidate{exactCandidate("Le Petit Prince", "Antoine de Saint-Exupéry")}},
	}}

	res, err := newTestService(rec, lk, store).ScanShelf(ctx, []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, models.ScanStats{Detected: 1, Duplicates: 1}, res.Stats)
	assert.Equal(t, "1 duplicate copy(ies) detected", res.Message)
	require.Len(t, res.Books, 1)
	assert.False(t, res.Books[0].IsNewBook)
	assert.Equal(t, existing.ID, res.Books[0].ID)
	assert.Equal(t, 1, res.Books[0].CopyNumber)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].CopyNumber)
	assert.Equal(t, "Le Petit Prince", all[0].Title, "existing entry is not modified")
}

func TestScanShelfISBNMatchBypassesScoring(t *testing.T) {
	store := openStore(t)
	// The candidate shares nothing with the stub, so scoring alone would fail it.
	candidate := exactCandidate("Der kleine Prinz", "A. de Saint-Exupéry")
	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Petit Prince", Author: "Saint-Ex", ISBN: "9782070612758", Confidence: 0.6}}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Petit Prince": {Candidates: []models.MetadataCandidate{candidate}, ISBNMatch: true, Strategy: "isbn"},
	}}

	res, err := newTestService(rec, lk, store).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, models.ScanStats{Detected: 1, Added: 1}, res.Stats)
	require.Len(t, res.Books, 1)
	assert.InDelta(t, 0.8, res.Books[0].Confidence, 1e-9)
}

func TestScanShelfThresholdIsInclusive(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantAdded  int
	}{
		{"exactly at threshold", 0.4, 1},
		{"just below threshold", 0.39, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Emma", Author: "Jane Austen", Confidence: tt.confidence}}}
			lk := &fakeLookup{results: map[string]lookup.Result{
				"Emma": {Candidates: []models.MetadataCandidate{exactCandidate("Emma", "Jane Austen")}, ISBNMatch: true},
			}}

			res, err := newTestService(rec, lk, openStore(t)).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, res.Stats.Added)
			assert.Equal(t, 1-tt.wantAdded, res.Stats.Skipped)
		})
	}
}

func TestScanShelfLookupFailureCountsAsNoCandidates(t *testing.T) {
	rec := &fakeRecognizer{stubs: []models.DetectedStub{
		{Title: "Dune", Author: "Frank Herbert", Confidence: 1.0},
		{Title: "Emma", Author: "Jane Austen", Confidence: 0.9},
	}}
	lk := &fakeLookup{
		results: map[string]lookup.Result{"Emma": {Candidates: []models.MetadataCandidate{exactCandidate("Emma", "Jane Austen")}}},
		failing: map[string]bool{"Dune": true},
	}

	res, err := newTestService(rec, lk, openStore(t)).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	// Dune: (1.0 + 0) / 2 = 0.5, skipped without aborting Emma.
	assert.Equal(t, models.ScanStats{Detected: 2, Added: 1, Skipped: 1}, res.Stats)
	assert.Equal(t, "1 new book(s) added, 1 skipped", res.Message)
}

func TestScanShelfRecognitionFailure(t *testing.T) {
	recErr := &recognition.Error{Provider: "fake", Err: errors.New("quota exceeded")}
	var events []models.ScanProgress
	svc := newTestService(&fakeRecognizer{err: recErr}, &fakeLookup{}, openStore(t))

	res, err := svc.ScanShelf(context.Background(), []byte("img"), "image/jpeg",
		WithProgress(func(p models.ScanProgress) { events = append(events, p) }))
	assert.Nil(t, res)
	var target *recognition.Error
	require.ErrorAs(t, err, &target)
	require.NotEmpty(t, events)
	assert.Equal(t, models.StepError, events[len(events)-1].Step)
}

func TestScanShelfPersistenceErrorIsSkipped(t *testing.T) {
	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Dune", Author: "Frank Herbert", Confidence: 0.9}}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Dune": {Candidates: []models.MetadataCandidate{exactCandidate("Dune", "Frank Herbert")}},
	}}

	res, err := newTestService(rec, lk, brokenCatalog{}).ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStats{Detected: 1, Skipped: 1}, res.Stats)
	assert.True(t, res.Success)
}

func TestScanShelfIsIdempotent(t *testing.T) {
	store := openStore(t)
	rec := &fakeRecognizer{stubs: []models.DetectedStub{
		{Title: "Dune", Author: "Frank Herbert", Confidence: 0.9},
		{Title: "Emma", Author: "Jane Austen", Confidence: 0.9},
	}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Dune": {Candidates: []models.MetadataCandidate{exactCandidate("Dune", "Frank Herbert")}},
		"Emma": {Candidates: []models.MetadataCandidate{exactCandidate("Emma", "Jane Austen")}},
	}}
	svc := newTestService(rec, lk, store)

	first, err := svc.ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stats.Added)

	second, err := svc.ScanShelf(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStats{Detected: 2, Duplicates: 2}, second.Stats)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConcurrentScansCreateOneCopy(t *testing.T) {
	store := openStore(t)
	rec := &fakeRecognizer{stubs: []models.DetectedStub{{Title: "Dune", Author: "Frank Herbert", Confidence: 0.9}}}
	lk := &fakeLookup{results: map[string]lookup.Result{
		"Dune": {Candidates: []models.MetadataCandidate{exactCandidate("Dune", "Frank Herbert")}},
	}}
	svc := newTestService(rec, lk, store)

	const scans = 8
	results := make([]*models.ScanResult, scans)
	var wg sync.WaitGroup
	for i := range scans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ScanShelf(context.Background(), []byte("img"), "image/jpeg")
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	var addedTotal, dupTotal int
	for _, res := range results {
		require.NotNil(t, res)
		assert.True(t, res.Stats.Balanced())
		addedTotal += res.Stats.Added
		dupTotal += res.Stats.Duplicates
	}
	assert.Equal(t, 1, addedTotal)
	assert.Equal(t, scans-1, dupTotal)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScanShelfProgress(t *testing.T) {
	rec := &fakeRecognizer{stubs: []models.DetectedStub{
		{Title: "Dune", Author: "Frank Herbert", Confidence: 0.9},
		{Title: "Emma", Author: "Jane Austen", Confidence: 0.9},
	}}
	var events []models.ScanProgress
	_, err := newTestService(rec, &fakeLookup{}, openStore(t)).ScanShelf(context.Background(), []byte("img"), "image/jpeg",
		WithProgress(func(p models.ScanProgress) { events = append(events, p) }))
	require.NoError(t, err)

	require.Len(t, events, 5)
	assert.Equal(t, models.StepAnalyzing, events[0].Step)
	assert.Equal(t, models.StepIdentifying, events[1].Step)
	assert.Equal(t, 2, events[1].BooksFound)
	assert.Equal(t, models.StepEnriching, events[2].Step)
	assert.Equal(t, 67, events[2].Progress)
	assert.Equal(t, 95, events[3].Progress)
	assert.Equal(t, models.StepComplete, events[4].Step)
	assert.Equal(t, 100, events[4].Progress)
}

func TestSummary(t *testing.T) {
	tests := []struct {
		stats models.ScanStats
		want  string
	}{
		{models.ScanStats{}, "no books added"},
		{models.ScanStats{Detected: 3, Added: 3}, "3 new book(s) added"},
		{models.ScanStats{Detected: 6, Added: 1, Duplicates: 2, Skipped: 3}, "1 new book(s) added, 2 duplicate copy(ies) detected, 3 skipped"},
		{models.ScanStats{Detected: 2, Duplicates: 1, Skipped: 1}, "1 duplicate copy(ies) detected, 1 skipped"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, summary(tt.stats))
	}
}

func TestAccept(t *testing.T) {
	final, ok := accept(0.4, 1.0)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, final, AcceptThreshold)

	_, ok = accept(0.5, 0)
	assert.False(t, ok)
}
