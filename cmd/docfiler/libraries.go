package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docfiler/docfiler/internal/library"
)

type libraryOutputEntry struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Chains [][]string `json:"chains"`
}

func newLibrariesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "libraries",
		Short: "List document libraries and their metadata fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			var entries []libraryOutputEntry
			for _, lib := range library.All() {
				entry := libraryOutputEntry{ID: string(lib.ID), Title: lib.Title, Chains: [][]string{}}
				for _, chain := range lib.Chains {
					var names []string
					for _, f := range chain {
						names = append(names, f.Name)
					}
					entry.Chains = append(entry.Chains, names)
				}
				entries = append(entries, entry)
			}

			if format == "json" {
				return outputJSON(cmd, entries)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Title", "Fields"})
			for _, entry := range entries {
				var chains []string
				for _, chain := range entry.Chains {
					chains = append(chains, strings.Join(chain, " > "))
				}
				t.AppendRow(table.Row{entry.ID, entry.Title, strings.Join(chains, ", ")})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}
