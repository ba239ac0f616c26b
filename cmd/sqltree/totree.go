package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/sqltree/internal/convert"
	"github.com/Mschirtzinger/sqltree/internal/ui"
	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

var toTreeCmd = &cobra.Command{
	Use:     "to-tree DB -o DIR",
	Aliases: []string{"from-sql"},
	GroupID: "convert",
	Short:   "Encode a database as a directory tree",
	Long: `Encode the SQLite database DB as a canonical directory tree at DIR.

Only files whose content changes are written. Table directories for tables
that no longer exist are removed. Entries in DIR starting with '.' (such as
.git or .jj) and directories that do not look like table directories are
left alone.

With --commit the resulting tree is committed to the git or jj repository
that contains DIR.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, err := requireOutput(cmd, "the tree directory to write")
		if err != nil {
			return err
		}
		commit, _ := cmd.Flags().GetBool("commit")
		message, _ := cmd.Flags().GetString("message")
		if message == "" {
			message = cfg.Watch.Message
		}
		return runToTree(cmd.Context(), cmd.OutOrStdout(), args[0], outDir, commit, message)
	},
}

func init() {
	toTreeCmd.Flags().StringP("output", "o", "", "Tree directory to write")
	toTreeCmd.Flags().Int("target-rows", 0, "Average rows per shard file for new trees (default 256)")
	toTreeCmd.Flags().Int("max-name-bytes", 0, "Key bytes kept in shard file names (default 32)")
	toTreeCmd.Flags().Bool("commit", false, "Commit the tree to the enclosing git or jj repository")
	toTreeCmd.Flags().StringP("message", "m", "", "Commit message for --commit")
	rootCmd.AddCommand(toTreeCmd)
}

func runToTree(ctx context.Context, w io.Writer, dbPath, outDir string, commit bool, message string) error {
	c, err := newConverter("to-tree")
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := c.ToTree(ctx, dbPath, outDir)
	if err != nil {
		return err
	}
	printResult(w, "Encoded", res, start)

	if !commit {
		return nil
	}
	v, err := vcs.Open(outDir)
	if err != nil {
		return fmt.Errorf("cannot commit %s: %w", outDir, err)
	}
	committed, err := vcs.CommitTree(ctx, v, outDir, message)
	if err != nil {
		return err
	}
	if committed {
		fmt.Fprintf(w, "%s Committed to %s\n", ui.RenderPass("✓"), v.Name())
	} else {
		fmt.Fprintf(w, "%s Nothing to commit\n", ui.RenderMuted("·"))
	}
	return nil
}

// printResult writes the one-line summary shared by to-tree and from-tree.
func printResult(w io.Writer, verb string, res *convert.Result, start time.Time) {
	fmt.Fprintf(w, "%s %s %d tables, %d rows in %v\n",
		ui.RenderPass("✓"), verb, res.Tables, res.Rows, time.Since(start).Round(time.Millisecond))
	if res.Plan != nil {
		fmt.Fprintf(w, "  %s\n", ui.Summary(res.Plan))
	}
	if res.Duplicates > 0 {
		fmt.Fprintf(w, "%s %d rows share a row key with another row; see the log\n",
			ui.RenderWarn("⚠"), res.Duplicates)
	}
}
