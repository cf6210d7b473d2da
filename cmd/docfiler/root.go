package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "docfiler",
	Short:   "docfiler - SharePoint metadata lookups for document filing",
	Long:    "docfiler caches the SharePoint lookup lists used to classify documents and resolves saved document metadata against them.",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the HCL config file")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newClientsCmd())
	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newComposeCmd())
	rootCmd.AddCommand(newLibrariesCmd())
	rootCmd.AddCommand(newMCPCmd())
}
