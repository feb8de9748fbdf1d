package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/cache"
	"github.com/amishk599/jobradar/internal/results"
)

var exportPath string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect the matching and rejected collections",
}

var resultsListCmd = &cobra.Command{
	Use:       "list [matching|rejected]",
	Short:     "Print evaluated listings",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{cache.Matching, cache.Rejected},
	RunE:      runResultsList,
}

var resultsRemoveCmd = &cobra.Command{
	Use:   "remove <listing-id>...",
	Short: "Remove listings so they are evaluated again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResultsRemove,
}

var resultsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write both collections to an .xlsx workbook",
	RunE:  runResultsExport,
}

var resultsBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse results interactively",
	RunE:  runResultsBrowse,
}

func init() {
	resultsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "jobradar-results.xlsx", "workbook path")
	resultsCmd.AddCommand(resultsListCmd, resultsRemoveCmd, resultsExportCmd, resultsBrowseCmd)
	rootCmd.AddCommand(resultsCmd)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, c, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	set, err := results.Load(ctx, c)
	if err != nil {
		logger.Error("failed to load results", "error", err)
		os.Exit(1)
	}

	names := []string{cache.Matching, cache.Rejected}
	if len(args) == 1 {
		names = args[:1]
	}
	out := cmd.OutOrStdout()
	for _, name := range names {
		list, err := set.Pick(name)
		if err != nil {
			logger.Error("invalid collection", "error", err)
			os.Exit(1)
		}
		fmt.Fprintf(out, "%s (%d)\n", name, len(list))
		if err := results.WriteTable(out, list); err != nil {
			return err
		}
	}
	return nil
}

func runResultsRemove(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, c, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	failed := false
	for _, id := range args {
		name, err := results.Remove(ctx, c, id)
		switch {
		case errors.Is(err, results.ErrNotFound):
			logger.Warn("listing not found", "id", id)
			failed = true
		case err != nil:
			logger.Error("remove failed", "id", id, "error", err)
			failed = true
		default:
			logger.Info("removed listing", "id", id, "collection", name)
		}
	}
	if failed {
		os.Exit(1)
	}
	return nil
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, c, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	set, err := results.Load(ctx, c)
	if err != nil {
		logger.Error("failed to load results", "error", err)
		os.Exit(1)
	}
	if err := results.WriteXLSX(exportPath, set, logger); err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote workbook", "path", exportPath)
	return nil
}

func runResultsBrowse(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The TUI owns the terminal from here on.
	quiet := quietLogger()
	ctx := context.Background()
	st, c, err := openCache(ctx, cfg, quiet)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	set, err := results.RunLoader(cfg.Store.Driver, func(ctx context.Context) (results.Set, error) {
		return results.Load(ctx, c)
	})
	if err != nil {
		logger.Error("failed to load results", "error", err)
		os.Exit(1)
	}
	if err := results.Browse(c, set); err != nil {
		logger.Error("browser error", "error", err)
		os.Exit(1)
	}
	return nil
}
