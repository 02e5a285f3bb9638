package storage

import (
	"context"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	"github.com/uptrace/bun"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filter narrows a book listing. Zero values mean "any".
type Filter struct {
	Status   models.Status
	Owner    models.Owner
	Category string
	Author   string
	// Search matches title, author or description.
	Search string
	Page   int
	Limit  int
}

// Page is one page of a book listing
type Page struct {
	Books      []models.CatalogEntry `json:"books"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"totalPages"`
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
}

// List returns the newest books first, filtered and paginated
func (s *Store) List(ctx context.Context, f Filter) (*Page, error) {
	f.normalize()

	entries := []models.CatalogEntry{}
	q := s.db.NewSelect().Model(&entries)

	if f.Status != "" {
		q = q.Where("b.status = ?", f.Status)
	}
	if f.Owner != "" {
		q = q.Where("b.owner = ?", f.Owner)
	}
	if f.Category != "" {
		q = q.Where("EXISTS (SELECT 1 FROM json_each(b.categories) WHERE json_each.value = ?)", f.Category)
	}
	if key := utils.Normalize(f.Author); key != "" {
		q = q.Where("instr(b.author_key, ?) > 0", key)
	}
	if key := utils.Normalize(f.Search); key != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("instr(b.title_key, ?) > 0", key).
				WhereOr("instr(b.author_key, ?) > 0", key).
				WhereOr("instr(lower(b.description), ?) > 0", key)
		})
	}

	total, err := q.
		Order("b.created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	return &Page{
		Books:      entries,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}
