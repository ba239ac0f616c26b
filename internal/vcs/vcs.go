// Package vcs records tree snapshots in the version control system that
// holds the output directory.
//
// Both git and jj (Jujutsu) are supported. The concrete backends live in
// internal/vcs/git and internal/vcs/jj and register themselves on import:
//
//	import (
//	    _ "github.com/Mschirtzinger/sqltree/internal/vcs/git"
//	    _ "github.com/Mschirtzinger/sqltree/internal/vcs/jj"
//	)
//
//	v, err := vcs.Open(outDir)
//	if err != nil {
//	    return err
//	}
//	committed, err := vcs.CommitTree(ctx, v, outDir, "snapshot")
package vcs

import "context"

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git-only repository
	TypeGit Type = "git"

	// TypeJJ indicates a jj-only repository (non-colocated)
	TypeJJ Type = "jj"

	// TypeColocate indicates a colocated repository (jj + git together)
	TypeColocate Type = "colocate"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// VCS is the subset of version control operations needed to record a
// tree snapshot.
type VCS interface {
	// Name returns the backend type (git or jj).
	Name() Type

	// RepoRoot returns the repository root directory path.
	RepoRoot() (string, error)

	// HasChanges reports whether any of paths differ from the last
	// recorded state. Untracked files count as changes.
	HasChanges(ctx context.Context, paths ...string) (bool, error)

	// Add stages paths for the next commit. A no-op for jj.
	Add(ctx context.Context, paths []string) error

	// Commit records the current state of opts.Paths.
	Commit(ctx context.Context, opts CommitOptions) error
}

// CommitOptions configures a commit.
type CommitOptions struct {
	// Message is the commit message (required)
	Message string

	// Paths limits the commit to these paths, relative to the repo root
	// or absolute. Empty means everything.
	Paths []string
}
