// Package git provides a git implementation of the vcs.VCS interface.
//
// It registers itself with the vcs package on import.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

func init() {
	vcs.Register(vcs.TypeGit, func(root string) (vcs.VCS, error) {
		return New(root)
	})
}

// Git implements the VCS interface for git repositories.
type Git struct {
	repoRoot string
}

// New creates a Git instance for the repository rooted at repoRoot.
func New(repoRoot string) (*Git, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}
	if _, err := os.Stat(filepath.Join(abs, ".git")); err != nil {
		return nil, vcs.ErrNotInVCS
	}
	return &Git{repoRoot: abs}, nil
}

// Name returns the VCS type (git)
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// RepoRoot returns the repository root directory path
func (g *Git) RepoRoot() (string, error) {
	if g.repoRoot == "" {
		return "", vcs.ErrNotInVCS
	}
	return g.repoRoot, nil
}

// Exec executes a raw git command in the repository root.
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, string(output))
	}
	return output, nil
}
