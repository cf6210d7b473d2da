// Package library describes the SharePoint document libraries a document can
// be filed into: their metadata fields, the cascades those fields form and how
// each field is written back on save.
package library

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docfiler/docfiler/internal/lookup"
)

// ErrUnknownLibrary is returned for ids that do not name a library.
var ErrUnknownLibrary = errors.New("library: unknown library")

// Unclassified is written for fields without a selection and is read back as
// "no value".
const Unclassified = "SIN CLASIFICAR"

type ID string

const (
	Clients    ID = "DOCUMENTOS_CLIENTES"
	Partners   ID = "DOCUMENTOS_SOCIOS"
	HR         ID = "DOCUMENTOS_ADMIN_RRHH"
	Consulate  ID = "DOCUMENTOS_CONSULADO_AUSTRALIA"
	Accounting ID = "DOCUMENTOS_CONTADURIA"
	TaxReturns ID = "DOCUMENTOS_DECLARACIONES_JURADAS"
	Internal   ID = "DOCUMENTOS_INTERNO"
)

// Emit selects which side of a selection is written to a field.
type Emit int

const (
	EmitTitle Emit = iota
	EmitID
)

// Field is one metadata column of a library.
type Field struct {
	Name   string
	Source lookup.Source
	Emit   Emit
	// Default is written when nothing is selected.
	Default string
	// Aliases are older column names accepted when reading saved metadata.
	Aliases []string
}

// Chain is a cascade: every field after the first depends on the one before.
type Chain []Field

type Library struct {
	ID     ID
	Title  string
	Chains []Chain
}

func titleField(name string, src lookup.Source) Field {
	return Field{Name: name, Source: src, Emit: EmitTitle, Default: Unclassified}
}

var libraries = []Library{
	{
		ID:    Clients,
		Title: "CLIENTES",
		Chains: []Chain{
			{
				titleField("Cliente", lookup.Clients),
				titleField("Asunto", lookup.Subjects),
				titleField("S_Asunto", lookup.SubSubjects),
			},
			{
				{Name: "Tipo_Doc", Source: lookup.DocumentTypes, Emit: EmitID},
				{Name: "S_Tipo", Source: lookup.SubTypes, Emit: EmitTitle},
			},
		},
	},
	{ID: Partners, Title: "SOCIOS"},
	{
		ID:    HR,
		Title: "ADMINISTRACION RRHH",
		Chains: []Chain{{
			{Name: "Carpeta1", Source: lookup.HRFolders, Default: Unclassified, Aliases: []string{"CarpetaRRHH"}},
		}},
	},
	{
		ID:    Consulate,
		Title: "CONSULADO DE AUSTRALIA",
		Chains: []Chain{
			{titleField("Nivel1", lookup.ConsulateLevel1)},
			{titleField("Nivel2", lookup.ConsulateLevel2)},
		},
	},
	{
		ID:    Accounting,
		Title: "CONTADURIA",
		Chains: []Chain{
			{
				titleField("Tema", lookup.AccountingThemes),
				titleField("SubTema", lookup.AccountingSubThemes),
			},
			{{Name: "TipoDoc", Source: lookup.AccountingDocTypes, Emit: EmitID}},
		},
	},
	{
		ID:     TaxReturns,
		Title:  "DJ PROFESIONALES",
		Chains: []Chain{{titleField("Carpeta1", lookup.TaxFolders)}},
	},
	{
		ID:    Internal,
		Title: "INTERNO",
		Chains: []Chain{{
			titleField("Carpeta1", lookup.Folder1),
			titleField("Carpeta2", lookup.Folder2),
			titleField("Carpeta3", lookup.Folder3),
			titleField("Carpeta4", lookup.Folder4),
			titleField("Carpeta5", lookup.Folder5),
			titleField("Carpeta6", lookup.Folder6),
			titleField("Carpeta7", lookup.Folder7),
		}},
	},
}

// All returns every library in display order.
func All() []Library {
	out := make([]Library, len(libraries))
	copy(out, libraries)
	return out
}

// Get returns the library with the given id.
func Get(id ID) (Library, error) {
	for _, lib := range libraries {
		if lib.ID == id {
			return lib, nil
		}
	}
	return Library{}, fmt.Errorf("%w: %q", ErrUnknownLibrary, string(id))
}

func Validate(id ID) error {
	_, err := Get(id)
	return err
}

// Fields returns the fields of every chain, in order.
func (l Library) Fields() []Field {
	var out []Field
	for _, chain := range l.Chains {
		out = append(out, chain...)
	}
	return out
}

// Field looks a field up by name or alias, ignoring case.
func (l Library) Field(name string) (Field, bool) {
	for _, f := range l.Fields() {
		if f.Matches(name) {
			return f, true
		}
	}
	return Field{}, false
}

// Matches reports whether name is the field's name or one of its aliases.
func (f Field) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(f.Name, name) {
		return true
	}
	for _, alias := range f.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// Value returns the saved value of f in a metadata bag, looking at the
// field name first and then its aliases. Blank and unclassified values are
// reported as absent.
func (f Field) Value(saved map[string]string) (string, bool) {
	names := append([]string{f.Name}, f.Aliases...)
	for _, name := range names {
		v := strings.TrimSpace(saved[name])
		if v == "" || strings.EqualFold(v, Unclassified) {
			continue
		}
		return v, true
	}
	return "", false
}

// Format renders a selection the way the field is stored.
func (f Field) Format(sel *lookup.Selection) string {
	if sel == nil {
		return f.Default
	}
	v := sel.Title
	if f.Emit == EmitID {
		v = sel.ID
		if v == "" {
			v = sel.Title
		}
	}
	if v == "" {
		return f.Default
	}
	return v
}
