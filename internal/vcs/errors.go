package vcs

import "errors"

var (
	// ErrNotInVCS is returned when the output directory is not inside a
	// git or jj repository.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the required VCS binary
	// (git or jj) is not installed or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrNotRegistered is returned when no backend has been registered for
	// the detected repository type.
	ErrNotRegistered = errors.New("no VCS backend registered")

	// ErrEmptyMessage is returned by Commit when no message is given.
	ErrEmptyMessage = errors.New("commit message is required")
)
