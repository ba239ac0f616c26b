package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// Constructor creates a VCS instance for a given repo root.
// Backends register themselves with Register from an init function.
type Constructor func(repoRoot string) (VCS, error)

var (
	registry      = make(map[Type]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor.
//
//	func init() {
//	    vcs.Register(vcs.TypeGit, func(root string) (vcs.VCS, error) { return New(root) })
//	}
func Register(t Type, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("vcs: Register constructor is nil for type %s", t))
	}
	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("vcs: Register called twice for type %s", t))
	}
	registry[t] = constructor
}

// IsRegistered returns true if a constructor is registered for the given type.
func IsRegistered(t Type) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[t]
	return exists
}

// Open detects the repository enclosing path and returns its backend.
func Open(path string) (VCS, error) {
	result, err := Detect(path)
	if err != nil {
		return nil, err
	}
	t, err := backendFor(result)
	if err != nil {
		return nil, err
	}

	registryMutex.RLock()
	constructor := registry[t]
	registryMutex.RUnlock()
	if constructor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return constructor(result.RepoRoot)
}

// CommitTree commits dir if it has changes and reports whether a commit
// was made.
func CommitTree(ctx context.Context, v VCS, dir, message string) (bool, error) {
	if message == "" {
		return false, ErrEmptyMessage
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	root, err := v.RepoRoot()
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false, err
	}

	changed, err := v.HasChanges(ctx, rel)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := v.Add(ctx, []string{rel}); err != nil {
		return false, err
	}
	if err := v.Commit(ctx, CommitOptions{Message: message, Paths: []string{rel}}); err != nil {
		return false, err
	}
	return true, nil
}
