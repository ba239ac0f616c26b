package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/sqltree/internal/ui"
	"github.com/Mschirtzinger/sqltree/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch DB -o DIR",
	GroupID: "convert",
	Short:   "Re-encode a database whenever it changes",
	Long: `Run to-tree once, then again every time DB changes.

Changes are debounced: a run starts once DB has been quiet for the
debounce interval. A failed run is logged and watching continues.

Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, err := requireOutput(cmd, "the tree directory to keep up to date")
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("commit") {
			cfg.Watch.Commit, _ = cmd.Flags().GetBool("commit")
		}
		if cmd.Flags().Changed("message") {
			cfg.Watch.Message, _ = cmd.Flags().GetString("message")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, args[0], outDir)
	},
}

func init() {
	watchCmd.Flags().StringP("output", "o", "", "Tree directory to keep up to date")
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before a run (default 500ms)")
	watchCmd.Flags().Bool("commit", false, "Commit each changed tree to the enclosing git or jj repository")
	watchCmd.Flags().StringP("message", "m", "", "Commit message for --commit")
	watchCmd.Flags().Int("target-rows", 0, "Average rows per shard file for new trees (default 256)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, dbPath, outDir string) error {
	c, err := newConverter("to-tree")
	if err != nil {
		return err
	}
	logger := logOut.Logger("watch")

	run := watch.ToTreeRunner(c, dbPath, outDir, cfg.Watch.Commit, cfg.Watch.Message, logger)
	w, err := watch.New(dbPath, run, watch.Config{Debounce: cfg.Watch.Debounce, Logger: logger})
	if err != nil {
		return err
	}

	fmt.Printf("%s Watching %s -> %s\n", ui.RenderAccent("👀"), dbPath, outDir)
	fmt.Printf("\nPress Ctrl+C to stop\n\n")
	if err := w.Run(ctx); err != nil {
		return err
	}

	runs, failures := w.Stats()
	fmt.Printf("%s Stopped after %d runs (%d failed)\n", ui.RenderMuted("·"), runs, failures)
	return nil
}
