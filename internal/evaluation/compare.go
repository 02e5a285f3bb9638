package evaluation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/arcana-family/arcana/internal/utils"
)

// FieldMatch is the comparison of one expected value with a detected one
type FieldMatch struct {
	Expected string  `yaml:"expected"`
	Actual   string  `yaml:"actual"`
	Score    float64 `yaml:"score"`
	Method   string  `yaml:"method"` // exact, substring, fuzzy_high, fuzzy_medium, no_match or *_missing
	Notes    string  `yaml:"notes,omitempty"`
}

// CompareField scores how well actual reproduces expected
func CompareField(expected, actual string) FieldMatch {
	match := FieldMatch{
		Expected: expected,
		Actual:   actual,
	}

	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	switch {
	case expNorm == "" && actNorm == "":
		match.Method = "both_missing"
		return match
	case expNorm == "":
		match.Method = "expected_missing"
		return match
	case actNorm == "":
		match.Method = "actual_missing"
		return match
	}

	if expNorm == actNorm {
		match.Score = 1.0
		match.Method = "exact"
		return match
	}

	if strings.Contains(actNorm, expNorm) || strings.Contains(expNorm, actNorm) {
		match.Score = 0.8
		match.Method = "substring"
		return match
	}

	similarity := calculateSimilarity(expNorm, actNorm)
	match.Score = similarity
	match.Notes = fmt.Sprintf("similarity %.2f", similarity)
	switch {
	case similarity > 0.7:
		match.Method = "fuzzy_high"
	case similarity > 0.4:
		match.Method = "fuzzy_medium"
	default:
		match.Method = "no_match"
	}
	return match
}

// normalizeForComparison lowercases, drops punctuation and collapses spaces
func normalizeForComparison(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, utils.Normalize(text))
	return strings.Join(strings.Fields(text), " ")
}

// calculateSimilarity is 1 minus the Levenshtein distance over the longer length
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1, r2 := []rune(s1), []rune(s2)
	maxLen := max(len(r1), len(r2))
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshteinDistance(r1, r2))/float64(maxLen)
}

func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
