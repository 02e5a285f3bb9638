package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for comparison: NFC composed, lowercased and trimmed.
// Accented titles typed on different keyboards compare equal after this.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so each call gets its own.
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// CleanISBN strips the dashes and spaces printed inside ISBNs.
func CleanISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}
