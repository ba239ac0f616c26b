package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mschirtzinger/sqltree/internal/tree"
	"github.com/Mschirtzinger/sqltree/internal/ui"
)

var planCmd = &cobra.Command{
	Use:     "plan DB -o DIR",
	GroupID: "inspect",
	Short:   "Show which files to-tree would change",
	Long: `Compute the file changes "sqltree to-tree DB -o DIR" would make without
writing anything.

Formats:
  text  one line per file: + created, ~ updated, - deleted (default)
  yaml  a document with tables, rows and changes
  json  the same document as JSON`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, err := requireOutput(cmd, "the tree directory to compare against")
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return runPlan(cmd.Context(), cmd.OutOrStdout(), args[0], outDir, format)
	},
}

func init() {
	planCmd.Flags().StringP("output", "o", "", "Tree directory to compare against")
	planCmd.Flags().String("format", "text", "Output format: text, yaml or json")
	planCmd.Flags().Int("target-rows", 0, "Average rows per shard file for new trees (default 256)")
	planCmd.Flags().Int("max-name-bytes", 0, "Key bytes kept in shard file names (default 32)")
	rootCmd.AddCommand(planCmd)
}

// planReport is the yaml/json form of a plan.
type planReport struct {
	Tables     int           `json:"tables" yaml:"tables"`
	Rows       int           `json:"rows" yaml:"rows"`
	Duplicates int           `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Changes    []tree.Change `json:"changes" yaml:"changes"`
}

func runPlan(ctx context.Context, w io.Writer, dbPath, outDir, format string) error {
	switch format {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown format %q (want text, yaml or json)", format)
	}

	c, err := newConverter("plan")
	if err != nil {
		return err
	}
	res, err := c.PlanTree(ctx, dbPath, outDir)
	if err != nil {
		return err
	}

	report := planReport{
		Tables:     res.Tables,
		Rows:       res.Rows,
		Duplicates: res.Duplicates,
		Changes:    res.Plan.Changes,
	}
	if report.Changes == nil {
		report.Changes = []tree.Change{}
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	default:
		ui.PrintPlan(w, res.Plan)
		return nil
	}
}
