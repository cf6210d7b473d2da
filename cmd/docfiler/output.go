package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docfiler/docfiler/internal/lookup"
)

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func validateFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
	}
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// recordWidths splits the terminal between the id and title columns. The id
// column keeps its natural width up to a third of the terminal.
func recordWidths(termWidth int, records []lookup.Record) (idWidth, titleWidth int) {
	available := termWidth - 3*3
	for _, r := range records {
		if w := runewidth.StringWidth(r.ID); w > idWidth {
			idWidth = w
		}
	}
	if idWidth < 4 {
		idWidth = 4
	}
	if idWidth > available/3 {
		idWidth = available / 3
	}
	titleWidth = available - idWidth - 8
	if titleWidth < 15 {
		titleWidth = 15
	}
	return idWidth, titleWidth
}

func outputRecords(cmd *cobra.Command, records []lookup.Record, format string) error {
	if format == "json" {
		return outputJSON(cmd, records)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	idWidth, titleWidth := recordWidths(getTerminalWidth(), records)
	t.AppendHeader(table.Row{"ID", "Title", "Parent"})
	for _, r := range records {
		t.AppendRow(table.Row{
			runewidth.Truncate(r.ID, idWidth, "..."),
			runewidth.Truncate(r.Title, titleWidth, "..."),
			r.ParentID,
		})
	}
	t.Render()
	fmt.Fprintf(cmd.ErrOrStderr(), "%d option(s)\n", len(records))
	return nil
}

func outputMetadata(cmd *cobra.Command, metadata map[string]string, order []string) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, name := range order {
		t.AppendRow(table.Row{name, metadata[name]})
	}
	t.Render()
}
