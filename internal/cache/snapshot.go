package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/docfiler/docfiler/internal/lookup"
)

// Snapshot is the cached state of the lookup lists. Published snapshots are
// never modified; every change produces a new one.
type Snapshot struct {
	Clients       []lookup.Record
	Subjects      []lookup.Record // ParentID is the client id
	SubSubjects   []lookup.Record // ParentID is the subject id
	DocumentTypes []lookup.Record
	SubTypes      []lookup.Record // ParentID is the document type id
	LastUpdated   time.Time
	Version       string
}

// Metadata is a derived, read-only view of a snapshot.
type Metadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
	RecordCount int       `json:"recordCount"`
	IsStale     bool      `json:"isStale"`
}

func emptySnapshot(now time.Time, version string) *Snapshot {
	return &Snapshot{
		Clients:       []lookup.Record{},
		Subjects:      []lookup.Record{},
		SubSubjects:   []lookup.Record{},
		DocumentTypes: []lookup.Record{},
		SubTypes:      []lookup.Record{},
		LastUpdated:   now,
		Version:       version,
	}
}

// Clone returns a copy whose slices can be modified freely.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Clients = cloneRecords(s.Clients)
	out.Subjects = cloneRecords(s.Subjects)
	out.SubSubjects = cloneRecords(s.SubSubjects)
	out.DocumentTypes = cloneRecords(s.DocumentTypes)
	out.SubTypes = cloneRecords(s.SubTypes)
	return &out
}

// Partition returns the records held for src, or nil for lists that are not
// part of the snapshot.
func (s *Snapshot) Partition(src lookup.Source) []lookup.Record {
	if s == nil {
		return nil
	}
	switch src {
	case lookup.Clients:
		return s.Clients
	case lookup.Subjects:
		return s.Subjects
	case lookup.SubSubjects:
		return s.SubSubjects
	case lookup.DocumentTypes:
		return s.DocumentTypes
	case lookup.SubTypes:
		return s.SubTypes
	}
	return nil
}

// with returns a shallow copy of s whose partition for src is records.
func (s *Snapshot) with(src lookup.Source, records []lookup.Record) *Snapshot {
	next := *s
	switch src {
	case lookup.Clients:
		next.Clients = records
	case lookup.Subjects:
		next.Subjects = records
	case lookup.SubSubjects:
		next.SubSubjects = records
	case lookup.DocumentTypes:
		next.DocumentTypes = records
	case lookup.SubTypes:
		next.SubTypes = records
	}
	return &next
}

// Cached reports whether src is stored in the snapshot.
func Cached(src lookup.Source) bool {
	switch src {
	case lookup.Clients, lookup.Subjects, lookup.SubSubjects, lookup.DocumentTypes, lookup.SubTypes:
		return true
	}
	return false
}

func children(records []lookup.Record, parentID string) []lookup.Record {
	var out []lookup.Record
	for _, r := range records {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out
}

func findByID(records []lookup.Record, id string) (lookup.Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return lookup.Record{}, false
}

func cloneRecords(records []lookup.Record) []lookup.Record {
	if records == nil {
		return nil
	}
	out := make([]lookup.Record, len(records))
	copy(out, records)
	return out
}

// Wire format. Field names are shared with snapshots written by the
// Office add-in, so a store seeded by either side stays readable.

type wireEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type wireSubject struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ClientID string `json:"clienteId"`
}

type wireSubSubject struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SubjectID string `json:"asuntoId"`
}

type wireSubType struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	TypeID string `json:"tipoId"`
}

type wireSnapshot struct {
	Clients       []wireEntry      `json:"clientes"`
	Subjects      []wireSubject    `json:"asuntos"`
	SubSubjects   []wireSubSubject `json:"subasuntos"`
	DocumentTypes []wireEntry      `json:"tiposDocumento"`
	SubTypes      []wireSubType    `json:"subtipos"`
	LastUpdated   string           `json:"lastUpdated"`
	Version       string           `json:"version"`
}

func encodeSnapshot(s *Snapshot) (string, error) {
	w := wireSnapshot{
		Clients:       make([]wireEntry, 0, len(s.Clients)),
		Subjects:      make([]wireSubject, 0, len(s.Subjects)),
		SubSubjects:   make([]wireSubSubject, 0, len(s.SubSubjects)),
		DocumentTypes: make([]wireEntry, 0, len(s.DocumentTypes)),
		SubTypes:      make([]wireSubType, 0, len(s.SubTypes)),
		LastUpdated:   s.LastUpdated.UTC().Format(time.RFC3339Nano),
		Version:       s.Version,
	}
	for _, r := range s.Clients {
		w.Clients = append(w.Clients, wireEntry{ID: r.ID, Title: r.Title})
	}
	for _, r := range s.Subjects {
		w.Subjects = append(w.Subjects, wireSubject{ID: r.ID, Title: r.Title, ClientID: r.ParentID})
	}
	for _, r := range s.SubSubjects {
		w.SubSubjects = append(w.SubSubjects, wireSubSubject{ID: r.ID, Title: r.Title, SubjectID: r.ParentID})
	}
	for _, r := range s.DocumentTypes {
		w.DocumentTypes = append(w.DocumentTypes, wireEntry{ID: r.ID, Title: r.Title})
	}
	for _, r := range s.SubTypes {
		w.SubTypes = append(w.SubTypes, wireSubType{ID: r.ID, Title: r.Title, TypeID: r.ParentID})
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(data), nil
}

// decodeSnapshot parses a persisted snapshot. Version checks are left to the caller.
func decodeSnapshot(raw string) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s := &Snapshot{
		Clients:       make([]lookup.Record, 0, len(w.Clients)),
		Subjects:      make([]lookup.Record, 0, len(w.Subjects)),
		SubSubjects:   make([]lookup.Record, 0, len(w.SubSubjects)),
		DocumentTypes: make([]lookup.Record, 0, len(w.DocumentTypes)),
		SubTypes:      make([]lookup.Record, 0, len(w.SubTypes)),
		Version:       w.Version,
	}
	if w.LastUpdated != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot timestamp: %w", err)
		}
		s.LastUpdated = ts
	}
	for _, e := range w.Clients {
		s.Clients = append(s.Clients, lookup.Record{ID: e.ID, Title: e.Title})
	}
	for _, e := range w.Subjects {
		s.Subjects = append(s.Subjects, lookup.Record{ID: e.ID, Title: e.Title, ParentID: e.ClientID})
	}
	for _, e := range w.SubSubjects {
		s.SubSubjects = append(s.SubSubjects, lookup.Record{ID: e.ID, Title: e.Title, ParentID: e.SubjectID})
	}
	for _, e := range w.DocumentTypes {
		s.DocumentTypes = append(s.DocumentTypes, lookup.Record{ID: e.ID, Title: e.Title})
	}
	for _, e := range w.SubTypes {
		s.SubTypes = append(s.SubTypes, lookup.Record{ID: e.ID, Title: e.Title, ParentID: e.TypeID})
	}
	return s, nil
}
