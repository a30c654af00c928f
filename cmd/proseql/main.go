// Command proseql is a small bundled demo of the library: it opens a
// single file-backed "notes" collection, reports what its migration chain
// would do to the stored file, and — after an interactive confirmation —
// applies it. Grounded on the teacher's cmd/bd, which likewise wraps a
// storage-opening library behind a cobra root command with signal-aware
// prompts for anything that mutates state on disk.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steveyegge/proseql"
)

var (
	dbFile  string
	dryRun  bool
	yes     bool
	rootCtx context.Context
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	rootCtx = ctx

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if isCanceled(err) {
			exitCanceled()
		}
		fmt.Fprintln(os.Stderr, "proseql:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proseql",
	Short: "Demo CLI for the proseql embedded document database",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Report and apply the demo notes collection's migration chain",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&dbFile, "file", "notes.json", "path to the notes collection's backing file")
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing anything")
	migrateCmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	spec := notesSpec(dbFile)

	db, err := proseql.Open([]proseql.CollectionSpec{spec}, proseql.Options{
		DryRunMigrations: true,
	})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	var reports []proseql.MigrationReport
	for _, r := range db.MigrationReports() {
		if r.StepsApplied > 0 {
			reports = append(reports, r)
		}
	}
	if len(reports) == 0 {
		fmt.Println("notes: already at the current schema version, nothing to migrate")
		return nil
	}
	printReports(reports)

	if dryRun {
		return nil
	}

	ok := yes
	if !ok {
		ok, err = confirm(rootCtx, fmt.Sprintf("Apply %d migration(s) to %s?", len(reports), dbFile))
		if err != nil {
			return err
		}
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	db2, err := proseql.Open([]proseql.CollectionSpec{spec}, proseql.Options{})
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	db2.Close() // the reopen has already written the migrated rows back
	fmt.Println("migration applied")
	return nil
}

func printReports(reports []proseql.MigrationReport) {
	for _, r := range reports {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
	}
}

// notesSpec is the demo schema: a simple notes collection at
// schema version 2, whose only migration step renames "body" to "text".
func notesSpec(file string) proseql.CollectionSpec {
	return proseql.CollectionSpec{
		Name: "notes",
		Validator: proseql.NewValidator(
			proseql.SchemaField{Path: "title", Type: "string", Required: true},
			proseql.SchemaField{Path: "text", Type: "string"},
		),
		File:          file,
		Format:        "json",
		SchemaVersion: 2,
		Migrations: []proseql.MigrationStep{
			{
				From: 1,
				Apply: func(rec map[string]any) (map[string]any, error) {
					if body, ok := rec["body"]; ok {
						rec["text"] = body
						delete(rec, "body")
					}
					return rec, nil
				},
			},
		},
	}
}
