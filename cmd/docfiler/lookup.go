package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docfiler/docfiler/internal/lookup"
)

func newClientsCmd() *cobra.Command {
	var (
		maxClients int
		format     string
	)

	cmd := &cobra.Command{
		Use:   "clients [search]",
		Short: "Search clients by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			search := ""
			if len(args) == 1 {
				search = args[0]
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			return outputRecords(cmd, e.lookups.Clients(context.Background(), search, maxClients), format)
		},
	}

	cmd.Flags().IntVar(&maxClients, "max", 20, "Maximum number of clients (0 for all)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func sourceNames() string {
	var names []string
	for _, src := range lookup.Sources() {
		names = append(names, src.String())
	}
	return strings.Join(names, ", ")
}

func newLookupCmd() *cobra.Command {
	var (
		parentID    string
		parentTitle string
		search      string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "lookup <source>",
		Short: "List the options of a lookup list",
		Long:  "List the options of a lookup list. Dependent lists need --parent-id.\n\nSources: " + sourceNames(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			src, err := lookup.ParseSource(args[0])
			if err != nil {
				return fmt.Errorf("%w (valid values: %s)", err, sourceNames())
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.lookups.Options(context.Background(), src, lookup.Parent{ID: parentID, Title: parentTitle})
			if err != nil {
				return err
			}
			return outputRecords(cmd, lookup.FilterBySearch(records, search, 0), format)
		},
	}

	cmd.Flags().StringVar(&parentID, "parent-id", "", "Id of the selected option one level above")
	cmd.Flags().StringVar(&parentTitle, "parent-title", "", "Title of the selected option one level above")
	cmd.Flags().StringVar(&search, "search", "", "Only show options containing this text")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}
