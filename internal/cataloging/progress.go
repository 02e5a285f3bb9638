package cataloging

import (
	"fmt"
	"sync"

	"github.com/arcana-family/arcana/internal/models"
)

// reporter serializes progress callbacks coming from the enrichment workers
type reporter struct {
	mu   sync.Mutex
	fn   func(models.ScanProgress)
	done int
}

func newReporter(fn func(models.ScanProgress)) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) send(p models.ScanProgress) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn(p)
}

// settled records one finished stub and reports enrichment progress between
// 40 and 95 percent.
func (r *reporter) settled(total int) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	r.fn(models.ScanProgress{
		Step:       models.StepEnriching,
		Message:    fmt.Sprintf("Enriched %d of %d book(s)", r.done, total),
		Progress:   40 + 55*r.done/total,
		BooksFound: total,
	})
}
