package git

import (
	"context"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

// HasChanges returns true if any of paths has staged, unstaged or
// untracked changes.
func (g *Git) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	args := []string{"status", "--porcelain", "--untracked-files=all"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	output, err := g.Exec(ctx, args...)
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// Add stages paths, including deletions.
func (g *Git) Add(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--all", "--"}, paths...)
	_, err := g.Exec(ctx, args...)
	return err
}

// Commit creates a commit with the specified options
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) error {
	if opts.Message == "" {
		return vcs.ErrEmptyMessage
	}

	if err := g.Add(ctx, opts.Paths); err != nil {
		return err
	}

	args := []string{"commit", "--quiet", "-m", opts.Message}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	_, err := g.Exec(ctx, args...)
	return err
}
