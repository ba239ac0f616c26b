package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeVCS struct {
	root    string
	changed bool
	added   []string
	commits []CommitOptions
}

func (f *fakeVCS) Name() Type                { return TypeGit }
func (f *fakeVCS) RepoRoot() (string, error) { return f.root, nil }
func (f *fakeVCS) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	return f.changed, nil
}
func (f *fakeVCS) Add(ctx context.Context, paths []string) error {
	f.added = append(f.added, paths...)
	return nil
}
func (f *fakeVCS) Commit(ctx context.Context, opts CommitOptions) error {
	f.commits = append(f.commits, opts)
	f.changed = false
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		want    Type
	}{
		{"git", []string{".git"}, TypeGit},
		{"jj", []string{".jj"}, TypeJJ},
		{"colocated", []string{".git", ".jj"}, TypeColocate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, m := range tt.markers {
				if err := os.Mkdir(filepath.Join(root, m), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			// Detection starts below the root and at a path that does not exist yet.
			got, err := Detect(filepath.Join(root, "a", "b"))
			if err != nil {
				t.Fatalf("Detect() failed: %v", err)
			}
			if got.Type != tt.want {
				t.Errorf("Type = %v, want %v", got.Type, tt.want)
			}
			if got.RepoRoot != root {
				t.Errorf("RepoRoot = %q, want %q", got.RepoRoot, root)
			}
		})
	}
}

func TestDetectGitWorktreeFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: /elsewhere\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if got.Type != TypeGit {
		t.Errorf("Type = %v, want git", got.Type)
	}
}

func TestPreferredVCS(t *testing.T) {
	t.Setenv("SQLTREE_VCS", "git")
	if got := PreferredVCS(); got != TypeGit {
		t.Errorf("PreferredVCS() = %v, want git", got)
	}
	t.Setenv("SQLTREE_VCS", "")
	if got := PreferredVCS(); got != TypeJJ {
		t.Errorf("PreferredVCS() = %v, want jj", got)
	}
}

func TestCommitTree(t *testing.T) {
	root := t.TempDir()
	f := &fakeVCS{root: root, changed: true}
	ctx := context.Background()

	committed, err := CommitTree(ctx, f, filepath.Join(root, "db"), "snapshot")
	if err != nil {
		t.Fatalf("CommitTree() failed: %v", err)
	}
	if !committed {
		t.Fatal("CommitTree() = false, want true")
	}
	if len(f.commits) != 1 || f.commits[0].Paths[0] != "db" || f.commits[0].Message != "snapshot" {
		t.Errorf("commits = %+v", f.commits)
	}
	if len(f.added) != 1 || f.added[0] != "db" {
		t.Errorf("added = %v", f.added)
	}

	committed, err = CommitTree(ctx, f, filepath.Join(root, "db"), "snapshot")
	if err != nil {
		t.Fatalf("CommitTree() failed: %v", err)
	}
	if committed {
		t.Error("CommitTree() committed without changes")
	}

	if _, err := CommitTree(ctx, f, root, ""); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("CommitTree() error = %v, want ErrEmptyMessage", err)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register() twice did not panic")
		}
	}()
	ctor := func(string) (VCS, error) { return nil, nil }
	Register("test-dup", ctor)
	Register("test-dup", ctor)
}
