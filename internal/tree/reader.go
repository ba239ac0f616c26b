package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/shard"
)

// Reader parses a tree back into canonical tables.
type Reader struct {
	Root   string
	Logger *log.Logger
}

// NewReader returns a reader for the tree at root.
func NewReader(root string, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.New(os.Stderr, "[tree] ", log.LstdFlags)
	}
	return &Reader{Root: root, Logger: logger}
}

// TableDirs returns the table directories in lexical order.
func (r *Reader) TableDirs() ([]string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to list %s", r.Root)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if fileExists(filepath.Join(r.Root, e.Name(), DescriptorFile)) {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// Views returns the content of views.sql, or "" when there is none.
func (r *Reader) Views() (string, error) {
	data, err := r.readOptional(viewsFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ViewTriggers returns the content of view_triggers.sql, or "" when there
// is none.
func (r *Reader) ViewTriggers() (string, error) {
	data, err := r.readOptional(viewTrigFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadTable parses one table directory. It checks that the directory name,
// descriptor and schema agree and that every record sits in the shard its
// key maps to.
func (r *Reader) ReadTable(dir string) (*Table, error) {
	name, err := schema.UnescapeName(dir)
	if err != nil {
		return nil, err
	}

	descPath := path.Join(dir, DescriptorFile)
	data, err := r.read(descPath)
	if err != nil {
		return nil, err
	}
	d, err := schema.ParseDescriptor(data)
	if err != nil {
		return nil, inFile(err, descPath)
	}
	if d.Name != name {
		return nil, errs.New(errs.ErrMalformedTree, "descriptor names table %q but directory is %q", d.Name, dir).InFile(descPath, 0)
	}

	schemaPath := path.Join(dir, schemaFile)
	data, err = r.read(schemaPath)
	if err != nil {
		return nil, err
	}
	tbl, err := schema.CanonicalizeTable(string(data))
	if err != nil {
		return nil, inFile(errs.Annotate(err, name), schemaPath)
	}
	if tbl.Name != d.Name {
		return nil, errs.New(errs.ErrMalformedTree, "schema creates table %q, descriptor names %q", tbl.Name, d.Name).InFile(schemaPath, 0)
	}
	if !slices.Equal(tbl.ColumnNames(), d.ColumnNames()) {
		return nil, errs.New(errs.ErrSchemaMismatch, "schema columns %v do not match descriptor columns %v",
			tbl.ColumnNames(), d.ColumnNames()).InTable(name).InFile(schemaPath, 0)
	}
	if tbl.SQL+";\n" != string(data) {
		r.Logger.Printf("warning: %s is not in canonical form", schemaPath)
	}

	t := &Table{Descriptor: d, Schema: tbl.SQL}
	idx, err := r.readOptional(path.Join(dir, indexesFile))
	if err != nil {
		return nil, err
	}
	trg, err := r.readOptional(path.Join(dir, triggersFile))
	if err != nil {
		return nil, err
	}
	t.Indexes, t.Triggers = string(idx), string(trg)

	if t.Records, err = r.readShards(dir, d); err != nil {
		return nil, errs.Annotate(err, name)
	}
	return t, nil
}

func (r *Reader) readShards(dir string, d *schema.Descriptor) ([]rows.Record, error) {
	rowsPath := path.Join(dir, rowsDir)
	entries, err := os.ReadDir(r.abs(rowsPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to list shards").InFile(rowsPath, 0)
	}

	var names []string
	for _, e := range entries {
		n, ok := strings.CutSuffix(e.Name(), shardExt)
		if e.IsDir() || !ok || !shard.ValidName(n) {
			return nil, errs.New(errs.ErrMalformedTree, "unexpected entry in rows directory").InFile(path.Join(rowsPath, e.Name()), 0)
		}
		names = append(names, n)
	}
	slices.Sort(names)

	p := shard.Policy{TargetRows: d.Shard.TargetRows, MaxNameBytes: d.Shard.MaxNameBytes}
	layout := rows.LayoutOf(d)
	var all []rows.Record
	for _, n := range names {
		rel := path.Join(rowsPath, n+shardExt)
		data, err := r.read(rel)
		if err != nil {
			return nil, err
		}
		recs, err := rows.Parse(layout, data)
		if err != nil {
			return nil, inFile(err, rel)
		}
		for i, rec := range recs {
			if owner := p.ShardOf(rec.Key, names); owner != n {
				return nil, errs.New(errs.ErrMalformedTree, "record belongs in shard %s", owner).InFile(rel, i+1)
			}
		}
		all = append(all, recs...)
	}
	slices.SortStableFunc(all, rows.Compare)
	return all, nil
}

func (r *Reader) read(rel string) ([]byte, error) {
	data, err := os.ReadFile(r.abs(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New(errs.ErrMalformedTree, "missing file").InFile(rel, 0)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to read").InFile(rel, 0)
	}
	return data, nil
}

func (r *Reader) readOptional(rel string) ([]byte, error) {
	data, err := os.ReadFile(r.abs(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to read").InFile(rel, 0)
	}
	return data, nil
}

func (r *Reader) abs(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// inFile attaches a file path to a classified error, keeping its line.
func inFile(err error, rel string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.InFile(rel, e.Line)
	}
	return fmt.Errorf("%s: %w", rel, err)
}
