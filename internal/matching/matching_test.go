package matching

import (
	"math"
	"testing"

	"github.com/arcana-family/arcana/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		stub      models.DetectedStub
		candidate models.MetadataCandidate
		want      float64
	}{
		{
			name:      "exact title and author",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert"},
			candidate: models.MetadataCandidate{Title: "DUNE ", Authors: []string{"Frank Herbert"}},
			want:      1.0,
		},
		{
			name:      "title containment",
			stub:      models.DetectedStub{Title: "Dune", Author: "Herbert"},
			candidate: models.MetadataCandidate{Title: "Dune, tome 1", Authors: []string{"Frank Herbert"}},
			want:      0.85,
		},
		{
			name:      "word overlap on both fields",
			stub:      models.DetectedStub{Title: "the dark tower", Author: "stephen edwin king"},
			candidate: models.MetadataCandidate{Title: "A Tower of Dark", Authors: []string{"King, Stephen"}},
			// title 2/3 of 25, author 2/3 of 35
			want: (2.0/3.0*25 + 2.0/3.0*35) / 100,
		},
		{
			name:      "nothing in common",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert"},
			candidate: models.MetadataCandidate{Title: "Ubik", Authors: []string{"Philip K. Dick"}},
			want:      0,
		},
		{
			name:      "publisher hint matched",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Pocket"},
			candidate: models.MetadataCandidate{Title: "Dune", Authors: []string{"Frank Herbert"}, Publisher: "Pocket Jeunesse"},
			want:      1.0,
		},
		{
			name:      "publisher hint missed grows the denominator",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Gallimard"},
			candidate: models.MetadataCandidate{Title: "Dune", Authors: []string{"Frank Herbert"}, Publisher: "Pocket"},
			want:      100.0 / 120.0,
		},
		{
			name:      "collection found in subtitle",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Collection: "Folio SF"},
			candidate: models.MetadataCandidate{Title: "Dune", Subtitle: "Folio SF", Authors: []string{"Frank Herbert"}},
			want:      1.0,
		},
		{
			name:      "collection found in publisher",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Collection: "Folio"},
			candidate: models.MetadataCandidate{Title: "Dune", Authors: []string{"Frank Herbert"}, Publisher: "Gallimard Folio"},
			want:      1.0,
		},
		{
			name:      "both hints missed",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Gallimard", Collection: "Folio SF"},
			candidate: models.MetadataCandidate{Title: "Dune", Authors: []string{"Frank Herbert"}},
			want:      100.0 / 135.0,
		},
		{
			name:      "candidate without authors",
			stub:      models.DetectedStub{Title: "Dune", Author: "Frank Herbert"},
			candidate: models.MetadataCandidate{Title: "Dune"},
			want:      0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.stub, tt.candidate)
			if !almostEqual(got, tt.want) {
				t.Errorf("Confidence() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Confidence() = %v, out of [0,1]", got)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	pocket := models.MetadataCandidate{ExternalID: "pocket", Title: "Dune", Authors: []string{"Frank Herbert"}, Publisher: "Pocket"}
	laffont := models.MetadataCandidate{ExternalID: "laffont", Title: "Dune", Authors: []string{"Frank Herbert"}, Publisher: "Robert Laffont"}
	guide := models.MetadataCandidate{ExternalID: "guide", Title: "The Dune Encyclopedia", Authors: []string{"Willis McNelly"}}
	folio := models.MetadataCandidate{ExternalID: "folio", Title: "Dune", Subtitle: "Folio SF", Authors: []string{"Frank Herbert"}, Publisher: "Gallimard"}

	tests := []struct {
		name       string
		stub       models.DetectedStub
		candidates []models.MetadataCandidate
		want       string
	}{
		{
			name:       "first title and author match wins",
			stub:       models.DetectedStub{Title: "Dune", Author: "Herbert"},
			candidates: []models.MetadataCandidate{guide, pocket, laffont},
			want:       "pocket",
		},
		{
			name:       "publisher narrows the choice",
			stub:       models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Laffont"},
			candidates: []models.MetadataCandidate{pocket, laffont},
			want:       "laffont",
		},
		{
			name:       "unmatched publisher is relaxed",
			stub:       models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Gallimard Jeunesse"},
			candidates: []models.MetadataCandidate{guide, pocket, laffont},
			want:       "pocket",
		},
		{
			name:       "collection narrows the choice",
			stub:       models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Collection: "Folio SF"},
			candidates: []models.MetadataCandidate{pocket, folio},
			want:       "folio",
		},
		{
			name:       "publisher and collection must both hold in the strict pass",
			stub:       models.DetectedStub{Title: "Dune", Author: "Frank Herbert", Publisher: "Gallimard", Collection: "Folio SF"},
			candidates: []models.MetadataCandidate{laffont, folio},
			want:       "folio",
		},
		{
			name:       "falls back to the first candidate",
			stub:       models.DetectedStub{Title: "Les Misérables", Author: "Victor Hugo"},
			candidates: []models.MetadataCandidate{guide, pocket},
			want:       "guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.stub, tt.candidates)
			if got == nil {
				t.Fatal("Select() = nil")
			}
			if got.ExternalID != tt.want {
				t.Errorf("Select() = %q, want %q", got.ExternalID, tt.want)
			}
		})
	}
}

func TestSelectEmptyCandidate(t *testing.T) {
	empty := models.MetadataCandidate{ExternalID: "empty"}
	real := models.MetadataCandidate{ExternalID: "real", Title: "Dune", Authors: []string{"Frank Herbert"}}

	got := Select(models.DetectedStub{Title: "Dune", Author: "Frank Herbert"}, []models.MetadataCandidate{empty, real})
	if got == nil || got.ExternalID != "real" {
		t.Errorf("an empty candidate must not match everything, got %+v", got)
	}
}

func TestScore(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		got := Score(models.DetectedStub{Title: "Dune", Author: "Frank Herbert"}, nil)
		if got.Valid || got.Confidence != 0 || got.Best != nil {
			t.Errorf("Score(nil) = %+v, want zero result", got)
		}
	})

	t.Run("valid above half", func(t *testing.T) {
		got := Score(
			models.DetectedStub{Title: "Dune", Author: "Frank Herbert"},
			[]models.MetadataCandidate{{ExternalID: "x", Title: "Dune", Authors: []string{"Frank Herbert"}}},
		)
		if !got.Valid || got.Confidence != 1 || got.Best == nil || got.Best.ExternalID != "x" {
			t.Errorf("Score() = %+v", got)
		}
	})

	t.Run("exactly half is not valid", func(t *testing.T) {
		got := Score(
			models.DetectedStub{Title: "Dune", Author: "Frank Herbert"},
			[]models.MetadataCandidate{{Title: "Dune"}},
		)
		if got.Valid || !almostEqual(got.Confidence, 0.5) {
			t.Errorf("Score() = %+v, want invalid at 0.5", got)
		}
	})
}

func TestExact(t *testing.T) {
	c := models.MetadataCandidate{ExternalID: "isbn-hit", Title: "Something Else"}
	got := Exact(c)
	if !got.Valid || got.Confidence != 1.0 || got.Best == nil || got.Best.ExternalID != "isbn-hit" {
		t.Errorf("Exact() = %+v", got)
	}
}
