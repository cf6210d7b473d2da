// Package lookup holds the lookup-list data model shared by the cache, the
// data access facade and the resolution chain, together with one adapter per
// SharePoint list that turns a raw Graph item into a Record.
package lookup

import "strings"

// Placeholders used when a remote item lacks an id or a title. They are
// ordinary values: they are stored, displayed and matched like any other.
const (
	MissingID    = "Sin código"
	MissingTitle = "Sin título"
)

// Record is one option of a lookup list.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ParentID    string `json:"parentId,omitempty"`
	ParentTitle string `json:"parentTitle,omitempty"`
	// Raw holds every field of the remote item, stringified. It is only kept
	// for the lifetime of a fetch and is never persisted.
	Raw map[string]string `json:"-"`
}

// Wildcard reports whether the record carries no parent reference at all and
// therefore applies under every parent.
func (r Record) Wildcard() bool {
	return strings.TrimSpace(r.ParentID) == "" && strings.TrimSpace(r.ParentTitle) == ""
}

// Parent identifies the selected option one level above a dependent list.
type Parent struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Selection is the resolved value of one cascade level.
type Selection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Synthetic marks a saved value that did not match any live option.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Select turns a record into a selection.
func Select(r Record) *Selection {
	return &Selection{ID: r.ID, Title: r.Title}
}

// SyntheticSelection carries a raw saved value as both id and title.
func SyntheticSelection(raw string) *Selection {
	return &Selection{ID: raw, Title: raw, Synthetic: true}
}

// Parent returns the selection as the parent of the next level.
func (s *Selection) Parent() Parent {
	if s == nil {
		return Parent{}
	}
	return Parent{ID: s.ID, Title: s.Title}
}

// Find returns the first option whose title or id equals value after trimming,
// ignoring case.
func Find(options []Record, value string) (Record, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return Record{}, false
	}
	for _, option := range options {
		if strings.ToLower(strings.TrimSpace(option.Title)) == needle ||
			strings.ToLower(strings.TrimSpace(option.ID)) == needle {
			return option, true
		}
	}
	return Record{}, false
}
