package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/sqltree/internal/convert"
	"github.com/Mschirtzinger/sqltree/internal/ui"
)

var fromTreeCmd = &cobra.Command{
	Use:     "from-tree DIR -o DB",
	Aliases: []string{"to-sql"},
	GroupID: "convert",
	Short:   "Decode a directory tree into a database",
	Long: `Decode the tree at DIR into a new SQLite database at DB.

The tree is fully validated before anything is written, and the database is
built in a temporary file that replaces DB only once it is complete. An
existing DB is replaced only with --force or after confirmation on a
terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := requireOutput(cmd, "the database file to create")
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(dbPath); err == nil && !force {
			ok, err := ui.Confirm(fmt.Sprintf("%s exists. Replace it?", dbPath))
			switch {
			case errors.Is(err, ui.ErrNotInteractive):
				return fmt.Errorf("%w: %s (use --force to replace it)", convert.ErrDatabaseExists, dbPath)
			case err != nil:
				return err
			case !ok:
				return fmt.Errorf("%w: %s", convert.ErrDatabaseExists, dbPath)
			}
			force = true
		}
		return runFromTree(cmd.Context(), cmd.OutOrStdout(), args[0], dbPath, force)
	},
}

func init() {
	fromTreeCmd.Flags().StringP("output", "o", "", "Database file to create")
	fromTreeCmd.Flags().BoolP("force", "f", false, "Replace an existing database")
	rootCmd.AddCommand(fromTreeCmd)
}

func runFromTree(ctx context.Context, w io.Writer, inDir, dbPath string, overwrite bool) error {
	c, err := newConverter("from-tree")
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := c.FromTree(ctx, inDir, dbPath, overwrite)
	if err != nil {
		return err
	}
	printResult(w, "Decoded", res, start)
	return nil
}
