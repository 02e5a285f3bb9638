// Package matching picks the metadata candidate that best fits a detected
// book and scores how well it fits.
//
// Scoring is on a points scale. Title and author are worth 50 points each.
// A publisher hint adds a 20 point dimension and a collection hint a 15 point
// dimension, so the maximum only grows when the stub actually carries that
// hint. The confidence is points earned over points achievable.
package matching

import (
	"strings"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
)

const (
	titleExactPoints    = 50.0
	titleContainsPoints = 35.0
	titleWordsPoints    = 25.0

	authorContainsPoints = 50.0
	authorWordsPoints    = 35.0

	publisherPoints  = 20.0
	collectionPoints = 15.0

	basePoints = titleExactPoints + authorContainsPoints
)

// ValidThreshold is the confidence above which a match is considered valid
const ValidThreshold = 0.5

// Exact is the verdict for a candidate found through an exact identifier such
// as an ISBN. Text similarity is not consulted.
func Exact(candidate models.MetadataCandidate) models.EnrichmentResult {
	return models.EnrichmentResult{Valid: true, Confidence: 1.0, Best: &candidate}
}

// Score selects the best candidate for stub and computes its confidence.
// Without candidates the result is invalid with zero confidence.
func Score(stub models.DetectedStub, candidates []models.MetadataCandidate) models.EnrichmentResult {
	best := Select(stub, candidates)
	if best == nil {
		return models.EnrichmentResult{}
	}
	confidence := Confidence(stub, *best)
	return models.EnrichmentResult{
		Valid:      confidence > ValidThreshold,
		Confidence: confidence,
		Best:       best,
	}
}

type stubFields struct {
	title, author, publisher, collection string
}

type candidateFields struct {
	title, fullTitle, authors, publisher string
}

func newStubFields(s models.DetectedStub) stubFields {
	return stubFields{
		title:      utils.Normalize(s.Title),
		author:     utils.Normalize(s.Author),
		publisher:  utils.Normalize(s.Publisher),
		collection: utils.Normalize(s.Collection),
	}
}

func newCandidateFields(c models.MetadataCandidate) candidateFields {
	title := utils.Normalize(c.Title)
	return candidateFields{
		title:     title,
		fullTitle: strings.TrimSpace(title + " " + utils.Normalize(c.Subtitle)),
		authors:   utils.Normalize(strings.Join(c.Authors, " ")),
		publisher: utils.Normalize(c.Publisher),
	}
}

// constraints are the optional hints a selection pass enforces on top of
// title and author.
type constraints struct {
	publisher  string
	collection string
}

// Select returns the first candidate whose title and author match the stub in
// either direction. Publisher and collection hints are enforced in a first
// pass and dropped in a second. When no candidate matches at all the first
// candidate is returned. Select returns nil only for an empty list.
func Select(stub models.DetectedStub, candidates []models.MetadataCandidate) *models.MetadataCandidate {
	if len(candidates) == 0 {
		return nil
	}

	s := newStubFields(stub)
	fields := make([]candidateFields, len(candidates))
	for i, c := range candidates {
		fields[i] = newCandidateFields(c)
	}

	var passes []constraints
	if s.publisher != "" || s.collection != "" {
		passes = append(passes, constraints{publisher: s.publisher, collection: s.collection})
	}
	passes = append(passes, constraints{})

	for _, pass := range passes {
		for i, f := range fields {
			if matches(s, f, pass) {
				best := candidates[i]
				return &best
			}
		}
	}

	best := candidates[0]
	return &best
}

func matches(s stubFields, f candidateFields, c constraints) bool {
	if !containsEither(f.title, s.title) || !containsEither(f.authors, s.author) {
		return false
	}
	if c.publisher != "" && !containsEither(f.publisher, c.publisher) {
		return false
	}
	if c.collection != "" && !collectionMatches(f, c.collection) {
		return false
	}
	return true
}

// Confidence scores candidate against stub in [0,1].
func Confidence(stub models.DetectedStub, candidate models.MetadataCandidate) float64 {
	s := newStubFields(stub)
	f := newCandidateFields(candidate)

	score := titleScore(s.title, f.title) + authorScore(s.author, f.authors)
	maxScore := basePoints

	if s.publisher != "" {
		maxScore += publisherPoints
		if containsEither(f.publisher, s.publisher) {
			score += publisherPoints
		}
	}
	if s.collection != "" {
		maxScore += collectionPoints
		if collectionMatches(f, s.collection) {
			score += collectionPoints
		}
	}

	return clamp(score / maxScore)
}

func titleScore(stub, candidate string) float64 {
	switch {
	case stub != "" && stub == candidate:
		return titleExactPoints
	case containsEither(candidate, stub):
		return titleContainsPoints
	default:
		return min(titleWordsPoints, wordOverlap(stub, candidate)*titleWordsPoints)
	}
}

func authorScore(stub, candidate string) float64 {
	if containsEither(candidate, stub) {
		return authorContainsPoints
	}
	return min(authorWordsPoints, wordOverlap(stub, candidate)*authorWordsPoints)
}

// wordOverlap is the fraction of the stub's whitespace separated words found
// anywhere in the candidate text.
func wordOverlap(stub, candidate string) float64 {
	words := strings.Fields(stub)
	if len(words) == 0 || candidate == "" {
		return 0
	}
	found := 0
	for _, w := range words {
		if strings.Contains(candidate, w) {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

func collectionMatches(f candidateFields, collection string) bool {
	if collection == "" {
		return false
	}
	return strings.Contains(f.fullTitle, collection) || strings.Contains(f.publisher, collection)
}

// containsEither reports whether one non-empty value contains the other.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
