// Package cli implements logctl, a command-line tool for querying and
// pruning the log database directly.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/PhilHem/logstore/backend/config"
	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/logstore"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	version = "dev"
	commit  = "none"
)

// app is the state shared by all subcommands.
type app struct {
	dbPath string
	output string
	db     *gorm.DB
	store  *logstore.Store
	out    io.Writer
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd, a := newRootCmd(stdout)
	// PersistentPostRunE is skipped when a command fails, so close here too.
	defer a.close()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer) (*cobra.Command, *app) {
	a := &app{out: stdout}

	rootCmd := &cobra.Command{
		Use:           "logctl",
		Short:         "Query and prune the log database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if a.output != "table" && a.output != "json" {
				return fmt.Errorf("unknown output format %q (use table or json)", a.output)
			}
			// Apply precedence: flag > env/config file > default
			if !cmd.Flags().Changed("db") {
				if err := config.Load(); err != nil {
					return err
				}
				a.dbPath = config.C.DatabasePath
			}
			db, err := database.Open(a.dbPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", a.dbPath, err)
			}
			a.db = db
			a.store = logstore.New(db)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "logs.db", "Path to the SQLite log database")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(
		newQueryCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newClearCmd(a),
		newExportCmd(a),
		newTimelineCmd(a),
		newVersionCmd(a),
	)
	return rootCmd, a
}

// close releases the database opened for the command. It is safe to call
// more than once.
func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	a.db, a.store = nil, nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
