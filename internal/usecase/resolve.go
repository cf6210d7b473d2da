package usecase

import (
	"context"
	"log/slog"

	"github.com/docfiler/docfiler/internal/library"
	"github.com/docfiler/docfiler/internal/lookup"
)

// Lookups returns the options of a lookup list under a parent.
type Lookups interface {
	Options(ctx context.Context, src lookup.Source, parent lookup.Parent) ([]lookup.Record, error)
}

// Level is the resolved state of one metadata field.
type Level struct {
	Field     string            `json:"field"`
	Source    lookup.Source     `json:"source"`
	Saved     string            `json:"saved,omitempty"`
	Selection *lookup.Selection `json:"selection,omitempty"`
	// Options are the live choices for the field, nil when they were not loaded.
	Options []lookup.Record `json:"options,omitempty"`
}

type Result struct {
	Library library.ID `json:"library"`
	Levels  []Level    `json:"levels"`
}

// Selections maps every field to its selection. Unselected fields map to nil.
func (r Result) Selections() map[string]*lookup.Selection {
	out := make(map[string]*lookup.Selection, len(r.Levels))
	for _, level := range r.Levels {
		out[level.Field] = level.Selection
	}
	return out
}

// Resolver rebuilds cascading selections from saved metadata.
type Resolver struct {
	lookups Lookups
	logger  *slog.Logger
}

func NewResolver(lookups Lookups, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookups: lookups, logger: logger}
}

// Resolve walks every chain of lib in order. A saved value that matches a live
// option becomes that option and the next level's options are fetched under it.
// A saved value that does not match, or that sits below an unmatched level or
// a failed fetch, is kept as a synthetic selection. A chain stops at the first
// level without a saved value.
func (r *Resolver) Resolve(ctx context.Context, lib library.Library, saved map[string]string) Result {
	result := Result{Library: lib.ID, Levels: []Level{}}
	for _, chain := range lib.Chains {
		result.Levels = append(result.Levels, r.resolveChain(ctx, lib.ID, chain, saved)...)
	}
	return result
}

func (r *Resolver) resolveChain(ctx context.Context, lib library.ID, chain library.Chain, saved map[string]string) []Level {
	levels := make([]Level, len(chain))
	for i, field := range chain {
		levels[i] = Level{Field: field.Name, Source: field.Source}
	}
	if len(chain) == 0 {
		return levels
	}

	options, err := r.lookups.Options(ctx, chain[0].Source, lookup.Parent{})
	live := err == nil
	if err != nil {
		r.logger.Error("failed to load options", "library", lib, "field", chain[0].Name, "error", err)
	} else {
		levels[0].Options = options
	}

	for i, field := range chain {
		value, ok := field.Value(saved)
		if !ok {
			break
		}
		levels[i].Saved = value

		if !live {
			levels[i].Selection = lookup.SyntheticSelection(value)
			continue
		}

		match, found := lookup.Find(options, value)
		if !found {
			r.logger.Debug("saved value not among live options", "library", lib, "field", field.Name, "value", value)
			levels[i].Selection = lookup.SyntheticSelection(value)
			live = false
			continue
		}
		levels[i].Selection = lookup.Select(match)

		if i+1 == len(chain) {
			break
		}
		next := chain[i+1]
		options, err = r.lookups.Options(ctx, next.Source, levels[i].Selection.Parent())
		if err != nil {
			r.logger.Error("failed to load options", "library", lib, "field", next.Name, "error", err)
			live = false
			continue
		}
		levels[i+1].Options = options
	}
	return levels
}
