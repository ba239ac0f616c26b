package tree

import (
	"bytes"
	"errors"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// Op is the kind of a planned file change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one planned file operation.
type Change struct {
	Op   Op     `json:"op" yaml:"op"`
	Path string `json:"path" yaml:"path"`
}

// Plan is the minimal set of file changes that turns the current tree into
// the desired one.
type Plan struct {
	Changes []Change

	desired Files
	// staleDirs are owned directories left empty by the plan, deepest first.
	staleDirs []string
}

// Empty reports whether the tree is already up to date.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0 && len(p.staleDirs) == 0
}

// Count returns the number of changes of each kind.
func (p *Plan) Count() (created, updated, deleted int) {
	for _, c := range p.Changes {
		switch c.Op {
		case OpCreate:
			created++
		case OpUpdate:
			updated++
		case OpDelete:
			deleted++
		}
	}
	return created, updated, deleted
}

// Writer applies desired file sets to a tree root.
type Writer struct {
	Root   string
	Logger *log.Logger
}

// NewWriter returns a writer for the tree at root.
func NewWriter(root string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(os.Stderr, "[tree] ", log.LstdFlags)
	}
	return &Writer{Root: root, Logger: logger}
}

// Plan compares desired with what is on disk.
func (w *Writer) Plan(desired Files) (*Plan, error) {
	owned, dirs, err := w.scan(desired)
	if err != nil {
		return nil, err
	}

	p := &Plan{desired: desired}
	for _, rel := range sortedKeys(desired) {
		if !owned[rel] {
			p.Changes = append(p.Changes, Change{Op: OpCreate, Path: rel})
			continue
		}
		cur, err := os.ReadFile(w.abs(rel))
		if err != nil {
			return nil, errs.Wrap(errs.ErrIO, err, "failed to read %s", rel)
		}
		if !bytes.Equal(cur, desired[rel]) {
			p.Changes = append(p.Changes, Change{Op: OpUpdate, Path: rel})
		}
	}
	for _, rel := range sortedKeys(owned) {
		if _, ok := desired[rel]; !ok {
			p.Changes = append(p.Changes, Change{Op: OpDelete, Path: rel})
		}
	}

	needed := make(map[string]bool)
	for rel := range desired {
		for d := path.Dir(rel); d != "."; d = path.Dir(d) {
			needed[d] = true
		}
	}
	for _, d := range dirs {
		if !needed[d] {
			p.staleDirs = append(p.staleDirs, d)
		}
	}
	// Deepest first so parents are empty by the time they are removed.
	slices.SortFunc(p.staleDirs, func(a, b string) int {
		if c := strings.Count(b, "/") - strings.Count(a, "/"); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return p, nil
}

// Apply performs the plan. Writes are atomic per file; a failure leaves
// every file either old or new.
func (w *Writer) Apply(p *Plan) error {
	for _, c := range p.Changes {
		switch c.Op {
		case OpCreate, OpUpdate:
			if err := writeFileAtomic(w.abs(c.Path), p.desired[c.Path]); err != nil {
				return errs.Wrap(errs.ErrIO, err, "failed to write").InFile(c.Path, 0)
			}
		case OpDelete:
			if err := os.Remove(w.abs(c.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errs.Wrap(errs.ErrIO, err, "failed to delete").InFile(c.Path, 0)
			}
		}
	}
	for _, d := range p.staleDirs {
		if err := os.Remove(w.abs(d)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.ErrIO, err, "failed to remove directory").InFile(d, 0)
		}
	}

	created, updated, deleted := p.Count()
	if len(p.Changes) > 0 {
		w.Logger.Printf("applied %d created, %d updated, %d deleted", created, updated, deleted)
	}
	return nil
}

// Write plans and applies desired in one step.
func (w *Writer) Write(desired Files) (*Plan, error) {
	p, err := w.Plan(desired)
	if err != nil {
		return nil, err
	}
	if err := w.Apply(p); err != nil {
		return p, err
	}
	return p, nil
}

// scan lists the files and directories the codec owns under the root:
// FORMAT, views.sql, leftover temp files, and everything inside table
// directories. A top-level directory is a table directory if it holds a
// table.toml or the desired set puts files in it.
func (w *Writer) scan(desired Files) (map[string]bool, []string, error) {
	owned := make(map[string]bool)
	var dirs []string

	entries, err := os.ReadDir(w.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return owned, nil, nil
	}
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrIO, err, "failed to list %s", w.Root)
	}

	wanted := make(map[string]bool)
	for rel := range desired {
		if top, _, ok := strings.Cut(rel, "/"); ok {
			wanted[top] = true
		}
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			if !e.IsDir() && strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix) {
				owned[name] = true
			}
			continue
		}
		if !e.IsDir() {
			if name == formatFile || name == viewsFile || name == viewTrigFile {
				owned[name] = true
			}
			continue
		}
		if !wanted[name] && !fileExists(filepath.Join(w.Root, name, DescriptorFile)) {
			continue
		}
		err := filepath.WalkDir(filepath.Join(w.Root, name), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(w.Root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				dirs = append(dirs, rel)
			} else {
				owned[rel] = true
			}
			return nil
		})
		if err != nil {
			return nil, nil, errs.Wrap(errs.ErrIO, err, "failed to scan %s", name)
		}
	}
	return owned, dirs, nil
}

func (w *Writer) abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
