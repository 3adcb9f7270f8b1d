/*
main.go - Offline reconciliation CLI

PURPOSE:
  Runs a reconciliation of an insurer's CSV file against a master-sheet
  SQLite database without the HTTP server, printing the report as JSON.
  Useful for batch checks and for inspecting a mapping before registering
  it for the online flow.

USAGE:
  # Against mappings stored in the database
  reconcile run --db mastersheet.db --insurer "Acme General" --csv acme_jan.csv

  # Against a directory of YAML mapping documents instead
  reconcile run --db mastersheet.db --insurer "Acme General" \
      --csv acme_jan.csv --mappings ./mappings

SEE ALSO:
  - recon/runner.go: The run orchestration
  - factory/mapping.go: YAML mapping documents
*/
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HeshMedia/insurezeal-sub006/factory"
	"github.com/HeshMedia/insurezeal-sub006/recon"
	"github.com/HeshMedia/insurezeal-sub006/store/sqlite"
	"github.com/HeshMedia/insurezeal-sub006/upload"
)

var (
	dbPath      string
	csvFile     string
	insurer     string
	mappingsDir string
	verbose     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile insurer upload files against the master ledger",
	Long: `reconcile compares an insurer's uploaded record file against the
master-sheet ledger, field by field under the insurer's registered
column mapping, and reports variances and unmatched policies.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation and print the report as JSON",
	RunE:  runReconciliation,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	runCmd.Flags().StringVarP(&dbPath, "db", "d", "mastersheet.db", "SQLite database path")
	runCmd.Flags().StringVarP(&csvFile, "csv", "c", "", "uploaded CSV file (required)")
	runCmd.Flags().StringVarP(&insurer, "insurer", "i", "", "insurer name (required)")
	runCmd.Flags().StringVarP(&mappingsDir, "mappings", "m", "", "directory of YAML mapping documents (defaults to mappings stored in the database)")

	runCmd.MarkFlagRequired("csv")
	runCmd.MarkFlagRequired("insurer")

	rootCmd.AddCommand(runCmd)
}

func runReconciliation(cmd *cobra.Command, args []string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	var mappings recon.MappingStore = store
	if mappingsDir != "" {
		dirStore, err := factory.LoadMappingDir(mappingsDir)
		if err != nil {
			return fmt.Errorf("load mappings: %w", err)
		}
		mappings = dirStore
	}

	master, err := store.AllRecords(cmd.Context())
	if err != nil {
		return fmt.Errorf("load master ledger: %w", err)
	}

	runner := recon.NewRunner(
		recon.NewResolver(mappings),
		upload.NewCSVSource(filepath.Dir(csvFile)),
		logger,
	)
	run, err := runner.Run(cmd.Context(), insurer, filepath.Base(csvFile), master)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
