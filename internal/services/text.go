package services

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxNoteLength   = 500
	maxPlayerLength = 120
)

var plainTextPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from free text typed by staff, collapses whitespace and
// truncates to limit runes.
func sanitizeText(value string, limit int) string {
	cleaned := html.UnescapeString(plainTextPolicy.Sanitize(value))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if limit > 0 && utf8.RuneCountInString(cleaned) > limit {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:limit]))
	}
	return cleaned
}
