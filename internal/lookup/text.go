package lookup

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips combining marks and trims it, so "José " and
// "jose" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.TrimSpace(folded)
}

// MatchesSearch reports whether the folded search text occurs in the record's
// title or id. An empty search matches everything.
func MatchesSearch(r Record, search string) bool {
	needle := Fold(search)
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(r.Title), needle) || strings.Contains(Fold(r.ID), needle)
}

// FilterBySearch keeps the records matching search, preserving order, and
// truncates the result to max entries when max is positive.
func FilterBySearch(records []Record, search string, max int) []Record {
	result := make([]Record, 0, len(records))
	for _, r := range records {
		if !MatchesSearch(r, search) {
			continue
		}
		result = append(result, r)
		if max > 0 && len(result) == max {
			break
		}
	}
	return result
}

// SortByTitle sorts records in place by title using Spanish collation.
func SortByTitle(records []Record) {
	// Collators keep internal buffers; one per call keeps this safe for concurrent use.
	c := collate.New(language.Spanish)
	slices.SortStableFunc(records, func(a, b Record) int {
		return c.CompareString(a.Title, b.Title)
	})
}

// Sorted returns a sorted copy of records.
func Sorted(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	SortByTitle(out)
	return out
}
