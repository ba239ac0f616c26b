package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DetectionResult describes the repository enclosing a directory.
type DetectionResult struct {
	// Type is the detected VCS type
	Type Type

	// RepoRoot is the repository root directory path
	RepoRoot string

	// HasGit indicates a .git directory/file was found
	HasGit bool

	// HasJJ indicates a .jj directory was found
	HasJJ bool
}

// Detect identifies the VCS type for a given directory by walking up
// from path until a .jj directory or a .git entry is found. A .git file
// (worktree) counts. Both together mean TypeColocate.
//
// path need not exist yet; detection starts at its nearest existing
// ancestor.
//
// Returns ErrNotInVCS if no VCS is found.
func Detect(path string) (*DetectionResult, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		result := &DetectionResult{}
		if info, err := os.Stat(filepath.Join(current, ".jj")); err == nil && info.IsDir() {
			result.HasJJ = true
		}
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			result.HasGit = true
		}

		if result.HasJJ || result.HasGit {
			result.RepoRoot = current
			switch {
			case result.HasJJ && result.HasGit:
				result.Type = TypeColocate
			case result.HasJJ:
				result.Type = TypeJJ
			default:
				result.Type = TypeGit
			}
			return result, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotInVCS
		}
		current = parent
	}
}

// PreferredVCS returns the backend to use for colocated repositories.
// The SQLTREE_VCS environment variable ("git" or "jj") overrides the
// default, which is jj.
func PreferredVCS() Type {
	switch strings.ToLower(os.Getenv("SQLTREE_VCS")) {
	case "git":
		return TypeGit
	case "jj", "jujutsu":
		return TypeJJ
	}
	return TypeJJ
}

// IsAvailable reports whether the binary for t is on PATH.
func IsAvailable(t Type) bool {
	var bin string
	switch t {
	case TypeGit:
		bin = "git"
	case TypeJJ:
		bin = "jj"
	default:
		return false
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// backendFor picks the implementation type for a detection result.
func backendFor(result *DetectionResult) (Type, error) {
	switch result.Type {
	case TypeGit, TypeJJ:
		if !IsAvailable(result.Type) {
			return "", ErrVCSNotAvailable
		}
		return result.Type, nil
	case TypeColocate:
		preferred, other := TypeJJ, TypeGit
		if PreferredVCS() == TypeGit {
			preferred, other = TypeGit, TypeJJ
		}
		if IsAvailable(preferred) {
			return preferred, nil
		}
		if IsAvailable(other) {
			return other, nil
		}
		return "", ErrVCSNotAvailable
	}
	return "", ErrNotInVCS
}
