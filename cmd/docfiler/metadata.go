package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docfiler/docfiler/internal/application"
	"github.com/docfiler/docfiler/internal/library"
	"github.com/docfiler/docfiler/internal/lookup"
	"github.com/docfiler/docfiler/internal/usecase"
)

// parseAssignments turns Field=value pairs into a map.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected Field=value)", pair)
		}
		out[strings.TrimSpace(name)] = value
	}
	return out, nil
}

func readMetadataFile(cmd *cobra.Command, path string) (map[string]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata file: %w", err)
		}
		defer f.Close()
		r = f
	}

	saved := map[string]string{}
	if err := json.NewDecoder(r).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	if saved == nil {
		saved = map[string]string{}
	}
	return saved, nil
}

func newResolveCmd() *cobra.Command {
	var (
		file   string
		sets   []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "resolve <library>",
		Short: "Resolve saved document metadata against the live lookup lists",
		Long:  "Resolve saved document metadata against the live lookup lists. The library is a library id or a drive name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			lib, err := library.Resolve(library.Options{DriveName: args[0]})
			if err != nil {
				return err
			}

			saved := map[string]string{}
			if file != "" {
				if saved, err = readMetadataFile(cmd, file); err != nil {
					return err
				}
			}
			overrides, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			for k, v := range overrides {
				saved[k] = v
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			resolver := usecase.NewResolver(e.lookups, nil)
			result := application.ResolveAndCompose(context.Background(), resolver, lib, saved)

			if format == "json" {
				return outputJSON(cmd, result)
			}
			outputResolution(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the saved metadata (- for stdin)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Saved value as Field=value (repeatable)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputResolution(cmd *cobra.Command, result application.ResolveAndComposeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Saved", "Selection", "Options", "Value"})

	for _, level := range result.Resolution.Levels {
		selection := ""
		if level.Selection != nil {
			selection = fmt.Sprintf("%s (%s)", level.Selection.Title, level.Selection.ID)
			if level.Selection.Synthetic {
				selection = level.Selection.Title + " (not found)"
			}
		}
		options := "-"
		if level.Options != nil {
			options = fmt.Sprint(len(level.Options))
		}
		t.AppendRow(table.Row{level.Field, level.Saved, selection, options, result.Metadata[level.Field]})
	}
	t.Render()
}

func newComposeCmd() *cobra.Command {
	var (
		sets   []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "compose <library>",
		Short: "Build the metadata written to a document",
		Long:  "Build the metadata written to a document from selected values. Each --set value is used as both id and title.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			lib, err := library.Resolve(library.Options{DriveName: args[0]})
			if err != nil {
				return err
			}
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			selections := make(map[string]*lookup.Selection, len(values))
			for name, value := range values {
				field, ok := lib.Field(name)
				if !ok {
					return fmt.Errorf("library %s has no field %q", lib.ID, name)
				}
				selections[field.Name] = &lookup.Selection{ID: value, Title: value}
			}

			metadata := application.ComposeMetadata(lib, selections)
			if format == "json" {
				return outputJSON(cmd, metadata)
			}
			var order []string
			for _, f := range lib.Fields() {
				order = append(order, f.Name)
			}
			outputMetadata(cmd, metadata, order)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Selected value as Field=value (repeatable)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}
