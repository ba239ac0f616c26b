package jj

import (
	"context"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

// Add is a no-op in jj (files are auto-tracked).
func (j *JJ) Add(ctx context.Context, paths []string) error {
	return nil
}

// HasChanges reports whether the working-copy change touches any of
// paths. jj snapshots the working copy before diffing.
func (j *JJ) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	args := []string{"diff", "--summary", "-r", "@"}
	args = append(args, paths...)

	output, err := j.Exec(ctx, args...)
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// Commit moves the changes under opts.Paths into a new commit with the
// given message, leaving the rest of the working copy in place.
func (j *JJ) Commit(ctx context.Context, opts vcs.CommitOptions) error {
	if opts.Message == "" {
		return vcs.ErrEmptyMessage
	}

	args := []string{"commit", "-m", opts.Message}
	args = append(args, opts.Paths...)

	_, err := j.Exec(ctx, args...)
	return err
}
