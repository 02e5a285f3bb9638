// Package storage persists the book catalog in SQLite through bun.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var (
	// ErrNotFound is returned when no book matches.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicate is returned when the same copy of a book is inserted twice.
	ErrDuplicate = errors.New("book copy already catalogued")
)

// MemoryPath opens a private in-memory database, used by tests and dry runs.
const MemoryPath = ":memory:"

// Store is the catalog store
type Store struct {
	db *bun.DB
}

// Open opens (creating when needed) the catalog database at path and ensures
// the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps writes serialized and an in-memory database alive.
	sqldb.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqldb.ExecContext(ctx, pragma); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := store.migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*models.CatalogEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create books table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*models.CatalogEntry)(nil)).
		Unique().
		IfNotExists().
		Index("books_title_author_copy_idx").
		Column("title_key", "author_key", "copy_number").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create books unique index: %w", err)
	}
	return nil
}

// FindDuplicate returns the oldest book whose title contains title and whose
// author contains author, both compared case-insensitively.
func (s *Store) FindDuplicate(ctx context.Context, title, author string) (*models.CatalogEntry, error) {
	titleKey, authorKey := utils.Normalize(title), utils.Normalize(author)
	if titleKey == "" || authorKey == "" {
		return nil, ErrNotFound
	}

	entry := new(models.CatalogEntry)
	err := s.db.NewSelect().
		Model(entry).
		Where("instr(b.title_key, ?) > 0", titleKey).
		Where("instr(b.author_key, ?) > 0", authorKey).
		Order("b.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Create inserts a book. It fills the ID, timestamps, search keys and the
// defaults for status, owner and copy number.
func (s *Store) Create(ctx context.Context, entry *models.CatalogEntry) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.StatusToRead
	}
	if entry.Owner == "" {
		entry.Owner = models.OwnerFamily
	}
	if entry.CopyNumber < 1 {
		entry.CopyNumber = 1
	}
	if entry.Categories == nil {
		entry.Categories = []string{}
	}
	entry.TitleKey = utils.Normalize(entry.Title)
	entry.AuthorKey = utils.Normalize(entry.Author)
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q by %q copy %d", ErrDuplicate, entry.Title, entry.Author, entry.CopyNumber)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// NextCopyNumber returns the copy number a new copy of this exact title and
// author would get.
func (s *Store) NextCopyNumber(ctx context.Context, title, author string) (int, error) {
	var highest sql.NullInt64
	err := s.db.NewSelect().
		Model((*models.CatalogEntry)(nil)).
		ColumnExpr("MAX(b.copy_number)").
		Where("b.title_key = ?", utils.Normalize(title)).
		Where("b.author_key = ?", utils.Normalize(author)).
		Scan(ctx, &highest)
	if err != nil {
		return 0, err
	}
	return int(highest.Int64) + 1, nil
}

// Get returns a book by ID
func (s *Store) Get(ctx context.Context, id string) (*models.CatalogEntry, error) {
	entry := new(models.CatalogEntry)
	if err := s.db.NewSelect().Model(entry).Where("b.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Delete removes a book
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*models.CatalogEntry)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdateStatus changes the reading status of a book
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.CatalogEntry, error) {
	entry := &models.CatalogEntry{ID: id, Status: status, UpdatedAt: time.Now().UTC()}
	return s.updateColumns(ctx, entry, "status", "updated_at")
}

// UpdateLoan records who borrowed a book. An empty borrower marks it returned.
func (s *Store) UpdateLoan(ctx context.Context, id, borrower string) (*models.CatalogEntry, error) {
	now := time.Now().UTC()
	entry := &models.CatalogEntry{ID: id, BorrowedBy: strings.TrimSpace(borrower), UpdatedAt: now}
	if entry.BorrowedBy != "" {
		entry.BorrowedAt = &now
	}
	return s.updateColumns(ctx, entry, "borrowed_by", "borrowed_at", "updated_at")
}

// SaveReadingCard stores a generated reading card on a book
func (s *Store) SaveReadingCard(ctx context.Context, id string, card *models.ReadingCard) (*models.CatalogEntry, error) {
	entry := &models.CatalogEntry{ID: id, ReadingCard: card, UpdatedAt: time.Now().UTC()}
	return s.updateColumns(ctx, entry, "reading_card", "updated_at")
}

func (s *Store) updateColumns(ctx context.Context, entry *models.CatalogEntry, columns ...string) (*models.CatalogEntry, error) {
	res, err := s.db.NewUpdate().Model(entry).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, entry.ID)
}

// All returns every book, oldest first
func (s *Store) All(ctx context.Context) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	if err := s.db.NewSelect().Model(&entries).Order("b.created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

// FilterOptions returns the distinct categories and authors in the catalog, sorted
func (s *Store) FilterOptions(ctx context.Context) (categories, authors []string, err error) {
	authors = []string{}
	if err := s.db.NewSelect().
		Model((*models.CatalogEntry)(nil)).
		ColumnExpr("DISTINCT b.author").
		Order("b.author ASC").
		Scan(ctx, &authors); err != nil {
		return nil, nil, err
	}

	var rows []models.CatalogEntry
	if err := s.db.NewSelect().Model(&rows).Column("categories").Scan(ctx); err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{})
	categories = []string{}
	for _, row := range rows {
		for _, c := range row.Categories {
			if _, ok := seen[c]; ok || c == "" {
				continue
			}
			seen[c] = struct{}{}
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	return categories, authors, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
