package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docfiler/docfiler/internal/cache"
)

func newInitCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Load or build the lookup cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			e.lookups.Initialize(context.Background())
			return outputCacheInfo(cmd, e.lookups.Metadata(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func newInfoCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show lookup cache metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			// Load the persisted snapshot without touching the network.
			output := newCacheInfoOutput(e.manager.Peek())
			if output.StoredValues, err = e.storedValues(cmd.Context()); err != nil {
				return err
			}
			return writeCacheInfo(cmd, output, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func newRefreshCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the lookup cache from SharePoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			snap := e.lookups.ForceRefresh(context.Background())
			if len(snap.Clients) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: clients could not be loaded, data may load slower than usual")
			}
			return outputCacheInfo(cmd, e.lookups.Metadata(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the lookup cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			e.lookups.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
}

type cacheInfoOutput struct {
	Present      bool   `json:"present"`
	LastUpdated  string `json:"lastUpdated,omitempty"`
	Version      string `json:"version,omitempty"`
	RecordCount  int    `json:"recordCount"`
	IsStale      bool   `json:"isStale"`
	StoredValues *int64 `json:"storedValues,omitempty"`

	updated time.Time
}

func newCacheInfoOutput(meta *cache.Metadata) cacheInfoOutput {
	if meta == nil {
		return cacheInfoOutput{}
	}
	return cacheInfoOutput{
		Present:     true,
		LastUpdated: meta.LastUpdated.Format(time.RFC3339),
		Version:     meta.Version,
		RecordCount: meta.RecordCount,
		IsStale:     meta.IsStale,
		updated:     meta.LastUpdated,
	}
}

func outputCacheInfo(cmd *cobra.Command, meta *cache.Metadata, format string) error {
	return writeCacheInfo(cmd, newCacheInfoOutput(meta), format)
}

func writeCacheInfo(cmd *cobra.Command, output cacheInfoOutput, format string) error {
	if format == "json" {
		return outputJSON(cmd, output)
	}

	out := cmd.OutOrStdout()
	if !output.Present {
		fmt.Fprintln(out, "No cache")
	} else {
		fmt.Fprintf(out, "Last Updated: %s\n", output.updated.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Version:      %s\n", output.Version)
		fmt.Fprintf(out, "Records:      %d\n", output.RecordCount)
		fmt.Fprintf(out, "Stale:        %t\n", output.IsStale)
	}
	if output.StoredValues != nil {
		fmt.Fprintf(out, "Stored:       %d values\n", *output.StoredValues)
	}
	return nil
}
