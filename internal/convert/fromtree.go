package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Mschirtzinger/sqltree/internal/engine"
	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/tree"
)

// ErrDatabaseExists is returned by FromTree when the target exists and
// overwrite was not requested.
var ErrDatabaseExists = errors.New("database already exists")

// FromTree decodes the tree at inDir into a new database at dbPath.
//
// The database is built in a temporary file next to dbPath inside one
// write transaction and renamed into place only after it commits, so a
// failed run leaves no partial database behind. An existing dbPath is
// replaced only when overwrite is set.
func (c *Converter) FromTree(ctx context.Context, inDir, dbPath string, overwrite bool) (*Result, error) {
	if _, err := os.Stat(dbPath); err == nil && !overwrite {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseExists, dbPath)
	}

	tables, root, err := c.readTree(ctx, inDir)
	if err != nil {
		return nil, err
	}

	tmp, err := tempPath(dbPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to prepare %s", dbPath)
	}
	success := false
	defer func() {
		if !success {
			os.Remove(tmp)
			os.Remove(tmp + "-journal")
		}
	}()

	res, err := c.load(ctx, tmp, tables, root)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to move database into place")
	}
	success = true

	c.logger.Printf("decoded %d tables, %d rows into %s", res.Tables, res.Rows, dbPath)
	return res, nil
}

// rootScripts holds the scripts kept at the tree root.
type rootScripts struct {
	views        string
	viewTriggers string
}

// readTree parses every table directory in parallel.
func (c *Converter) readTree(ctx context.Context, inDir string) ([]*tree.Table, rootScripts, error) {
	var root rootScripts
	if err := tree.CheckFormat(inDir); err != nil {
		return nil, root, err
	}
	r := tree.NewReader(inDir, c.logger)
	dirs, err := r.TableDirs()
	if err != nil {
		return nil, root, err
	}

	tables := make([]*tree.Table, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := r.ReadTable(dir)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, root, err
	}

	if root.views, err = r.Views(); err != nil {
		return nil, root, err
	}
	if root.viewTriggers, err = r.ViewTriggers(); err != nil {
		return nil, root, err
	}
	return tables, root, nil
}

// load creates the schema, inserts every record and replays indexes,
// triggers, views and view triggers, in that order, in one transaction.
func (c *Converter) load(ctx context.Context, path string, tables []*tree.Table, root rootScripts) (*Result, error) {
	db, err := engine.Create(ctx, path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to create database")
	}
	defer db.Close()

	// Tables load in directory order and rows in key order, so references
	// may point forward. The source may also hold dangling references it
	// accepted with enforcement off. Must run outside a transaction.
	if err := db.Exec(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to disable foreign key enforcement")
	}

	if err := db.BeginWrite(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to create database")
	}
	defer db.Rollback(ctx)

	res := &Result{Tables: len(tables)}
	for _, t := range tables {
		n, err := c.loadTable(ctx, db, t)
		if err != nil {
			return nil, errs.Annotate(err, t.Descriptor.Name)
		}
		res.Rows += n
	}
	// Triggers are created after the data so they do not fire on load.
	for _, t := range tables {
		if err := execScript(ctx, db, t.Indexes); err != nil {
			return nil, errs.Annotate(errs.Wrap(errs.ErrMalformedTree, err, "indexes.sql"), t.Descriptor.Name)
		}
	}
	for _, t := range tables {
		if err := execScript(ctx, db, t.Triggers); err != nil {
			return nil, errs.Annotate(errs.Wrap(errs.ErrMalformedTree, err, "triggers.sql"), t.Descriptor.Name)
		}
	}
	if err := execScript(ctx, db, root.views); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedTree, err, "views.sql")
	}
	if err := execScript(ctx, db, root.viewTriggers); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedTree, err, "view_triggers.sql")
	}

	if err := db.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to commit")
	}
	if err := db.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to close database")
	}
	return res, nil
}

func (c *Converter) loadTable(ctx context.Context, db *engine.DB, t *tree.Table) (int, error) {
	d := t.Descriptor
	if err := db.Exec(ctx, t.Schema); err != nil {
		return 0, errs.Wrap(errs.ErrMalformedTree, err, "schema.sql")
	}

	cols, err := db.Columns(ctx, d.Name)
	if err != nil {
		return 0, errs.Wrap(errs.ErrIO, err, "failed to read created columns")
	}
	if len(cols) != len(d.Columns) {
		return 0, errs.New(errs.ErrSchemaMismatch, "schema has %d columns, descriptor has %d", len(cols), len(d.Columns))
	}
	for i, col := range cols {
		want := d.Columns[i]
		if col.Name != want.Name || col.PrimaryKey != want.PrimaryKey {
			return 0, errs.New(errs.ErrSchemaMismatch, "column %d is %q (primary key %d), descriptor says %q (primary key %d)",
				i+1, col.Name, col.PrimaryKey, want.Name, want.PrimaryKey)
		}
		if d.RowKey == schema.RowKeyRowid && strings.EqualFold(col.Name, d.RowidColumn) {
			return 0, errs.New(errs.ErrMalformedTree, "rowid_column %q is shadowed by a column", d.RowidColumn)
		}
	}

	batch := make([]rows.Row, len(t.Records))
	for i, r := range t.Records {
		batch[i] = r.Row
	}
	if err := db.InsertRows(ctx, d.Name, d.ColumnNames(), d.RowidColumn, batch); err != nil {
		return 0, errs.Wrap(errs.ErrMalformedTree, err, "failed to load records")
	}
	return len(batch), nil
}

func execScript(ctx context.Context, db *engine.DB, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	return db.Exec(ctx, script)
}

// tempPath returns an unused path in the directory of dbPath.
func tempPath(dbPath string) (string, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dbPath)+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return name, nil
}
