// Package jj implements the VCS interface for Jujutsu (jj).
//
// jj tracks files automatically, so there is no staging step; a commit
// splits the named paths off the working-copy change.
package jj

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/vcs"
)

func init() {
	vcs.Register(vcs.TypeJJ, func(root string) (vcs.VCS, error) {
		return New(root)
	})
}

// JJ implements the VCS interface for Jujutsu.
type JJ struct {
	repoRoot    string
	isColocated bool
}

// New creates a JJ instance for the given repository root.
// The repository must already have a .jj directory.
func New(repoRoot string) (*JJ, error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	if _, err := os.Stat(filepath.Join(absRoot, ".jj")); err != nil {
		return nil, vcs.ErrNotInVCS
	}
	_, gitErr := os.Stat(filepath.Join(absRoot, ".git"))

	return &JJ{
		repoRoot:    absRoot,
		isColocated: gitErr == nil,
	}, nil
}

// Name returns "jj" for plain repos and "colocate" for colocated ones.
func (j *JJ) Name() vcs.Type {
	if j.isColocated {
		return vcs.TypeColocate
	}
	return vcs.TypeJJ
}

// RepoRoot returns the repository root directory path.
func (j *JJ) RepoRoot() (string, error) {
	return j.repoRoot, nil
}

// Exec executes a raw jj command in the repository root.
func (j *JJ) Exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "jj", args...)
	cmd.Dir = j.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := stderr.String()
		if strings.Contains(stderrStr, "There is no jj repo") {
			return nil, vcs.ErrNotInVCS
		}
		return nil, fmt.Errorf("jj %s failed: %w: %s",
			strings.Join(args, " "), err, stderrStr)
	}

	return stdout.Bytes(), nil
}
