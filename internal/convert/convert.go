// Package convert drives whole-database conversions between a SQLite file
// and its canonical directory tree.
//
// Reading the database is serial and happens inside one read transaction,
// so the tree reflects a single snapshot. Per-table canonicalization,
// sharding and parsing fan out over a bounded worker group; the tree
// writer and the database loader then run on one goroutine.
package convert

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/Mschirtzinger/sqltree/internal/shard"
	"github.com/Mschirtzinger/sqltree/internal/tree"
)

// Options configures a Converter.
type Options struct {
	// Policy controls how new trees are sharded.
	Policy shard.Policy
	// Workers bounds per-table parallelism. Zero means GOMAXPROCS.
	Workers int
	// Logger receives progress and warnings. Nil logs to stderr.
	Logger *log.Logger
}

// DefaultOptions returns options with the default shard policy.
func DefaultOptions() Options {
	return Options{Policy: shard.DefaultPolicy()}
}

// Result summarizes one conversion run.
type Result struct {
	Tables     int
	Rows       int
	Duplicates int
	// Plan is the file patch computed by ToTree or PlanTree.
	Plan *tree.Plan
}

// Converter converts between databases and trees.
type Converter struct {
	policy  shard.Policy
	workers int
	logger  *log.Logger
}

// New returns a Converter.
//
// Example:
//
//	c, err := convert.New(convert.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	res, err := c.ToTree(ctx, "app.db", "app-tree")
func New(opts Options) (*Converter, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shard policy: %w", err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[convert] ", log.LstdFlags)
	}
	return &Converter{policy: opts.Policy, workers: workers, logger: logger}, nil
}

// tableLogger returns a logger whose lines name the table.
func (c *Converter) tableLogger(table string) *log.Logger {
	return log.New(c.logger.Writer(), fmt.Sprintf("%stable %q: ", c.logger.Prefix(), table), c.logger.Flags())
}
