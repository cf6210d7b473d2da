package lookup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSource is returned by ParseSource for names that are not lookup lists.
var ErrUnknownSource = errors.New("lookup: unknown source")

// Source names one lookup list as addressed by callers.
type Source string

const (
	Clients             Source = "clients"
	Subjects            Source = "subjects"
	SubSubjects         Source = "subsubjects"
	DocumentTypes       Source = "doctypes"
	SubTypes            Source = "subtypes"
	HRFolders           Source = "hr"
	ConsulateLevel1     Source = "consulate1"
	ConsulateLevel2     Source = "consulate2"
	AccountingThemes    Source = "themes"
	AccountingSubThemes Source = "subthemes"
	AccountingDocTypes  Source = "accounting-doctypes"
	TaxFolders          Source = "tax"
	Folder1             Source = "folder1"
	Folder2             Source = "folder2"
	Folder3             Source = "folder3"
	Folder4             Source = "folder4"
	Folder5             Source = "folder5"
	Folder6             Source = "folder6"
	Folder7             Source = "folder7"
)

// ParentMatch selects how a dependent list is filtered against its parent.
type ParentMatch int

const (
	// MatchNone marks a root list.
	MatchNone ParentMatch = iota
	// MatchUnion keeps records whose parent id (and parent title, when both
	// sides carry one) equal the parent, plus every wildcard record.
	MatchUnion
	// MatchID keeps records whose parent id equals the parent id.
	MatchID
	// MatchLoose keeps records whose parent id equals, contains or
	// case-insensitively equals the parent id.
	MatchLoose
	// MatchIDAndTitleScan requires a parent id match and, when the parent
	// title is known, that title in at least one raw field.
	MatchIDAndTitleScan
)

type sourceInfo struct {
	listKey string
	parent  Source
	match   ParentMatch
	adapt   Adapter
}

var sources = map[Source]sourceInfo{
	Clients:             {listKey: "clientes", adapt: adaptClient},
	Subjects:            {listKey: "asuntos", parent: Clients, match: MatchUnion, adapt: adaptSubject},
	SubSubjects:         {listKey: "subasuntos", parent: Subjects, match: MatchUnion, adapt: adaptSubSubject},
	DocumentTypes:       {listKey: "tiposDocumento", adapt: adaptCoded},
	SubTypes:            {listKey: "subTiposdocumento", parent: DocumentTypes, match: MatchUnion, adapt: adaptSubType},
	HRFolders:           {listKey: "CARPETA", adapt: adaptDescribed("CARPETADESCRIPTION")},
	ConsulateLevel1:     {listKey: "NIVEL1", adapt: adaptDescribed("NIVEL1DESCRIPTION")},
	ConsulateLevel2:     {listKey: "NIVEL2", adapt: adaptTitleOnly},
	AccountingThemes:    {listKey: "Tema", adapt: adaptCoded},
	AccountingSubThemes: {listKey: "Subtema", parent: AccountingThemes, match: MatchLoose, adapt: adaptChild},
	AccountingDocTypes:  {listKey: "TipoDoc", adapt: adaptCoded},
	TaxFolders:          {listKey: "CARPETA1_DJ", adapt: adaptTitleOnly},
	Folder1:             {listKey: "CARPETA1", adapt: adaptCoded},
	Folder2:             {listKey: "CARPETA2", parent: Folder1, match: MatchID, adapt: adaptChild},
	Folder3:             {listKey: "CARPETA3", parent: Folder2, match: MatchIDAndTitleScan, adapt: adaptChild},
	Folder4:             {listKey: "CARPETA4", parent: Folder3, match: MatchIDAndTitleScan, adapt: adaptChild},
	Folder5:             {listKey: "CARPETA5", parent: Folder4, match: MatchIDAndTitleScan, adapt: adaptChild},
	Folder6:             {listKey: "CARPETA6", parent: Folder5, match: MatchID, adapt: adaptChild},
	Folder7:             {listKey: "CARPETA7", parent: Folder6, match: MatchID, adapt: adaptChild},
}

var sourceOrder = []Source{
	Clients, Subjects, SubSubjects, DocumentTypes, SubTypes,
	HRFolders, ConsulateLevel1, ConsulateLevel2,
	AccountingThemes, AccountingSubThemes, AccountingDocTypes,
	TaxFolders, Folder1, Folder2, Folder3, Folder4, Folder5, Folder6, Folder7,
}

// Sources lists every lookup source in a stable order.
func Sources() []Source {
	out := make([]Source, len(sourceOrder))
	copy(out, sourceOrder)
	return out
}

// ParseSource resolves a source name, ignoring case.
func ParseSource(name string) (Source, error) {
	candidate := Source(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := sources[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return candidate, nil
}

func (s Source) String() string { return string(s) }

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	_, ok := sources[s]
	return ok
}

// ListKey is the configuration key of the SharePoint list behind s.
func (s Source) ListKey() string { return sources[s].listKey }

// Parent returns the source one level above s, or "" for root lists.
func (s Source) Parent() Source { return sources[s].parent }

// Dependent reports whether s needs a parent selection.
func (s Source) Dependent() bool { return sources[s].match != MatchNone }

// Match returns how records of s are filtered against their parent.
func (s Source) Match() ParentMatch { return sources[s].match }

// Adapt maps one raw remote item to a record of s.
func (s Source) Adapt(item map[string]any) Record {
	info, ok := sources[s]
	if !ok {
		return Record{}
	}
	return info.adapt(item)
}

// Accepts reports whether r belongs under parent for this source.
func (s Source) Accepts(r Record, parent Parent) bool {
	parentID := strings.TrimSpace(parent.ID)
	recordParent := strings.TrimSpace(r.ParentID)

	switch s.Match() {
	case MatchNone:
		return true
	case MatchUnion:
		if r.Wildcard() {
			return true
		}
		if recordParent != parentID {
			return false
		}
		if parent.Title == "" {
			return true
		}
		return strings.EqualFold(strings.TrimSpace(r.ParentTitle), strings.TrimSpace(parent.Title))
	case MatchID:
		return recordParent == parentID
	case MatchLoose:
		return recordParent == parent.ID ||
			strings.Contains(strings.ToLower(recordParent), strings.ToLower(parent.ID)) ||
			strings.EqualFold(recordParent, parentID)
	case MatchIDAndTitleScan:
		if recordParent != parentID {
			return false
		}
		title := strings.ToLower(strings.TrimSpace(parent.Title))
		if title == "" {
			return true
		}
		for _, value := range r.Raw {
			if strings.ToLower(strings.TrimSpace(value)) == title {
				return true
			}
		}
		return false
	}
	return false
}

// Filter keeps the records of items accepted under parent.
func (s Source) Filter(records []Record, parent Parent) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if s.Accepts(r, parent) {
			out = append(out, r)
		}
	}
	return out
}
