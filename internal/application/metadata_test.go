package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfiler/docfiler/internal/library"
	"github.com/docfiler/docfiler/internal/lookup"
	"github.com/docfiler/docfiler/internal/usecase"
)

func mustLibrary(t *testing.T, id library.ID) library.Library {
	t.Helper()
	lib, err := library.Get(id)
	require.NoError(t, err)
	return lib
}

func TestComposeClientsMetadata(t *testing.T) {
	got := ComposeMetadata(mustLibrary(t, library.Clients), map[string]*lookup.Selection{
		"Cliente":  {ID: "C1", Title: "ACME"},
		"Tipo_Doc": {ID: "T1", Title: "Contrato"},
	})

	assert.Equal(t, map[string]string{
		"Cliente":  "ACME",
		"Asunto":   library.Unclassified,
		"S_Asunto": library.Unclassified,
		"Tipo_Doc": "T1",
		"S_Tipo":   "",
	}, got)
}

func TestComposeAccountingMetadata(t *testing.T) {
	lib := mustLibrary(t, library.Accounting)

	assert.Equal(t, map[string]string{
		"Tema":    library.Unclassified,
		"SubTema": library.Unclassified,
		"TipoDoc": "",
	}, ComposeMetadata(lib, nil))

	got := ComposeMetadata(lib, map[string]*lookup.Selection{"TipoDoc": {ID: "TD4", Title: "Balance"}})
	assert.Equal(t, "TD4", got["TipoDoc"])
}

func TestComposePartnersMetadataIsEmpty(t *testing.T) {
	got := ComposeMetadata(mustLibrary(t, library.Partners), map[string]*lookup.Selection{
		"Contratos": {ID: "x", Title: "x"},
	})
	assert.Empty(t, got)
}

func TestComposeInternalMetadataFillsEveryLevel(t *testing.T) {
	got := ComposeMetadata(mustLibrary(t, library.Internal), map[string]*lookup.Selection{
		"Carpeta1": {ID: "F1", Title: "Ventas"},
	})
	assert.Len(t, got, 7)
	assert.Equal(t, "Ventas", got["Carpeta1"])
	assert.Equal(t, library.Unclassified, got["Carpeta7"])
}

type staticLookups map[lookup.Source][]lookup.Record

func (s staticLookups) Options(_ context.Context, src lookup.Source, _ lookup.Parent) ([]lookup.Record, error) {
	return s[src], nil
}

func TestResolveAndComposeRoundTrip(t *testing.T) {
	resolver := usecase.NewResolver(staticLookups{
		lookup.HRFolders: {{ID: "H1", Title: "Legajos"}},
	}, nil)
	lib := mustLibrary(t, library.HR)

	got := ResolveAndCompose(context.Background(), resolver, lib, map[string]string{"CarpetaRRHH": "legajos"})
	assert.Equal(t, map[string]string{"Carpeta1": "Legajos"}, got.Metadata)

	unknown := ResolveAndCompose(context.Background(), resolver, lib, map[string]string{"Carpeta1": "Archivo viejo"})
	assert.Equal(t, map[string]string{"Carpeta1": "Archivo viejo"}, unknown.Metadata)
	assert.True(t, unknown.Resolution.Levels[0].Selection.Synthetic)
}
