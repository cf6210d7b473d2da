// Package services composes the cache manager and the remote lists into the
// lookup surface used by the resolution chain, the CLI and the MCP server.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/docfiler/docfiler/internal/lookup"
)

// ErrListNotConfigured is returned for lookup lists without a list id.
var ErrListNotConfigured = errors.New("services: list is not configured")

// ListFetcher returns every raw item of a SharePoint list.
type ListFetcher interface {
	FetchList(ctx context.Context, listID string) ([]map[string]any, error)
}

// RemoteLists maps lookup sources to list ids and raw items to records.
type RemoteLists struct {
	fetcher ListFetcher
	lists   map[string]string
}

func NewRemoteLists(fetcher ListFetcher, lists map[string]string) *RemoteLists {
	return &RemoteLists{fetcher: fetcher, lists: lists}
}

// Configured reports whether src has a list id.
func (r *RemoteLists) Configured(src lookup.Source) bool {
	return r.lists[src.ListKey()] != ""
}

// Records fetches and maps every item of the list behind src.
func (r *RemoteLists) Records(ctx context.Context, src lookup.Source) ([]lookup.Record, error) {
	listID := r.lists[src.ListKey()]
	if listID == "" {
		return nil, fmt.Errorf("%w: %s", ErrListNotConfigured, src.ListKey())
	}

	items, err := r.fetcher.FetchList(ctx, listID)
	if err != nil {
		return nil, err
	}

	records := make([]lookup.Record, 0, len(items))
	for _, item := range items {
		records = append(records, src.Adapt(item))
	}
	return records, nil
}
