// Package logging builds the *log.Logger values the rest of sqltree uses.
//
// Loggers share one output: stderr, a size-rotated file when log.file is
// set, or nothing when log.quiet is set. Each component gets its own
// bracketed prefix, e.g. "[to-tree] ".
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Mschirtzinger/sqltree/internal/config"
)

// Output is a log destination shared by component loggers.
type Output struct {
	w      io.Writer
	closer io.Closer
}

// Open returns the destination described by cfg. Close it when done.
func Open(cfg config.LogConfig) *Output {
	switch {
	case cfg.Quiet:
		return &Output{w: io.Discard}
	case cfg.File != "":
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		return &Output{w: lj, closer: lj}
	default:
		return &Output{w: os.Stderr}
	}
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Logger returns a logger for component, e.g. Logger("watch").
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Close flushes and closes a rotating log file. It is a no-op otherwise.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
