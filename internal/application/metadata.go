package application

import (
	"context"

	"github.com/docfiler/docfiler/internal/library"
	"github.com/docfiler/docfiler/internal/lookup"
	"github.com/docfiler/docfiler/internal/usecase"
)

// ComposeMetadata builds the metadata bag written to a document of lib from
// the current selections, keyed by field name. Fields missing from selections
// get their default.
func ComposeMetadata(lib library.Library, selections map[string]*lookup.Selection) map[string]string {
	metadata := make(map[string]string)
	for _, field := range lib.Fields() {
		metadata[field.Name] = field.Format(selections[field.Name])
	}
	return metadata
}

// ResolveAndComposeResult pairs the resolved levels with the bag they compose to.
type ResolveAndComposeResult struct {
	Resolution usecase.Result    `json:"resolution"`
	Metadata   map[string]string `json:"metadata"`
}

// ResolveAndCompose resolves saved metadata against the live lists and
// composes it again, so a re-opened document is saved with the same values
// unless the user changes a selection.
func ResolveAndCompose(ctx context.Context, resolver *usecase.Resolver, lib library.Library, saved map[string]string) ResolveAndComposeResult {
	resolution := resolver.Resolve(ctx, lib, saved)
	return ResolveAndComposeResult{
		Resolution: resolution,
		Metadata:   ComposeMetadata(lib, resolution.Selections()),
	}
}
