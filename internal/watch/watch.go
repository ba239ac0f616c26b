// Package watch re-runs a conversion whenever a SQLite database changes.
//
// The watcher observes the database's directory, since SQLite creates and
// removes its -journal and -wal side files rather than writing in place.
// Bursts of events are debounced into a single run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Mschirtzinger/sqltree/internal/convert"
	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

// Runner performs one conversion.
type Runner func(ctx context.Context) error

// Config holds configuration for the watcher.
type Config struct {
	// Debounce is how long the database must stay quiet before a run.
	Debounce time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce: 500 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher runs a Runner once at start and again after every quiet period
// following a change to the database.
type Watcher struct {
	dbPath string
	names  map[string]bool
	run    Runner
	config Config

	mu       sync.Mutex
	runs     int
	failures int
}

// New creates a watcher for dbPath. Use Run to start it.
func New(dbPath string, run Runner, config Config) (*Watcher, error) {
	if run == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config.Debounce < 0 {
		return nil, fmt.Errorf("debounce must not be negative, got %v", config.Debounce)
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dbPath, err)
	}
	base := filepath.Base(abs)

	return &Watcher{
		dbPath: abs,
		// -shm is left out: readers touch it, including our own runs.
		names: map[string]bool{
			base:              true,
			base + "-journal": true,
			base + "-wal":     true,
		},
		run:    run,
		config: config,
	}, nil
}

// Run blocks until ctx is cancelled. Failed runs are logged and the
// watcher keeps going; only a failure to watch at all is returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.dbPath)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.config.Logger.Printf("watching %s (debounce %v)", w.dbPath, w.config.Debounce)

	w.runOnce(ctx)

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				timer.Reset(w.config.Debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Printf("watcher error: %v", err)

		case <-timer.C:
			w.runOnce(ctx)
		}
	}
}

// relevant reports whether event concerns the database or its side files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.names[filepath.Base(event.Name)] {
		return false
	}
	// Chmod alone does not change content.
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) runOnce(ctx context.Context) {
	start := time.Now()
	err := w.run(ctx)

	w.mu.Lock()
	w.runs++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	switch {
	case err == nil:
		w.config.Logger.Printf("run complete in %v", time.Since(start).Round(time.Millisecond))
	case errors.Is(err, context.Canceled):
	default:
		w.config.Logger.Printf("run failed: %v", err)
	}
}

// Stats returns how many runs have happened and how many failed.
func (w *Watcher) Stats() (runs, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures
}

// ToTreeRunner returns a Runner that converts dbPath into outDir. When
// commit is set, each run that changed the tree is committed with message
// to the repository enclosing outDir.
func ToTreeRunner(c *convert.Converter, dbPath, outDir string, commit bool, message string, logger *log.Logger) Runner {
	return func(ctx context.Context) error {
		res, err := c.ToTree(ctx, dbPath, outDir)
		if err != nil {
			return err
		}
		if !commit || res.Plan.Empty() {
			return nil
		}

		v, err := vcs.Open(outDir)
		if err != nil {
			return fmt.Errorf("failed to open repository for %s: %w", outDir, err)
		}
		committed, err := vcs.CommitTree(ctx, v, outDir, message)
		if err != nil {
			return err
		}
		if committed && logger != nil {
			logger.Printf("committed %s with %s", outDir, v.Name())
		}
		return nil
	}
}
