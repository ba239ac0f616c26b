package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Mschirtzinger/sqltree/internal/engine"
	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/shard"
	"github.com/Mschirtzinger/sqltree/internal/tree"
)

// sourceTable is everything read from the database for one table.
type sourceTable struct {
	name       string
	sql        string
	columns    []engine.ColumnInfo
	rowidAlias string
	indexes    []string
	triggers   []string
	rows       []rows.Row
}

type snapshot struct {
	tables       []*sourceTable
	views        []string
	viewTriggers []string
}

// ToTree encodes the database at dbPath into the tree at outDir, touching
// only the files whose content changes.
func (c *Converter) ToTree(ctx context.Context, dbPath, outDir string) (*Result, error) {
	res, desired, err := c.render(ctx, dbPath, outDir)
	if err != nil {
		return nil, err
	}
	w := tree.NewWriter(outDir, c.logger)
	if res.Plan, err = w.Write(desired); err != nil {
		return res, err
	}
	c.logger.Printf("encoded %d tables, %d rows into %s", res.Tables, res.Rows, outDir)
	return res, nil
}

// PlanTree computes the patch ToTree would apply without writing anything.
func (c *Converter) PlanTree(ctx context.Context, dbPath, outDir string) (*Result, error) {
	res, desired, err := c.render(ctx, dbPath, outDir)
	if err != nil {
		return nil, err
	}
	if res.Plan, err = tree.NewWriter(outDir, c.logger).Plan(desired); err != nil {
		return nil, err
	}
	return res, nil
}

// render reads the database and produces the desired file set.
func (c *Converter) render(ctx context.Context, dbPath, outDir string) (*Result, tree.Files, error) {
	snap, err := c.readDatabase(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}

	tables := make([]tree.Files, len(snap.tables))
	dups := make([]int, len(snap.tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, src := range snap.tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.checkStoredPolicy(outDir, src.name)
			t, n, err := c.canonicalTable(src, c.policy)
			if err != nil {
				return errs.Annotate(err, src.name)
			}
			files, err := tree.TableFiles(t)
			if err != nil {
				return err
			}
			tables[i], dups[i] = files, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	views := make([]string, 0, len(snap.views))
	for _, v := range snap.views {
		cv, err := schema.CanonicalizeView(v)
		if err != nil {
			return nil, nil, errs.Wrap(errs.ErrUnsupportedSchema, err, "view")
		}
		views = append(views, cv)
	}
	viewTriggers, err := canonicalScript(snap.viewTriggers, true)
	if err != nil {
		return nil, nil, err
	}

	desired := tree.RootFiles(tree.Script(views), viewTriggers)
	res := &Result{Tables: len(snap.tables)}
	for i, f := range tables {
		desired.Merge(f)
		res.Rows += len(snap.tables[i].rows)
		res.Duplicates += dups[i]
	}
	return res, desired, nil
}

// readDatabase reads every user table inside one read transaction.
func (c *Converter) readDatabase(ctx context.Context, dbPath string) (*snapshot, error) {
	db, err := engine.Open(ctx, dbPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to open %s", dbPath)
	}
	defer db.Close()

	if err := db.BeginRead(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to read %s", dbPath)
	}
	defer db.Rollback(ctx)

	kinds, err := db.TableKinds(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to read catalog")
	}
	objs, err := db.Objects(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "failed to read catalog")
	}

	snap := &snapshot{}
	byName := make(map[string]*sourceTable)
	views := make(map[string]bool)
	for _, o := range objs {
		if o.Type != "table" || isInternal(o.Name) {
			continue
		}
		switch kinds[o.Name] {
		case "virtual":
			return nil, errs.New(errs.ErrUnsupportedSchema, "virtual tables are not supported").InTable(o.Name)
		case "shadow":
			return nil, errs.New(errs.ErrUnsupportedSchema, "shadow tables of virtual tables are not supported").InTable(o.Name)
		}
		src := &sourceTable{name: o.Name, sql: o.SQL}
		snap.tables = append(snap.tables, src)
		byName[strings.ToLower(o.Name)] = src
	}
	for _, o := range objs {
		if o.Type == "view" {
			snap.views = append(snap.views, o.SQL)
			views[strings.ToLower(o.Name)] = true
		}
	}
	// tbl_name keeps the case written in the statement, and SQLite
	// identifiers are case-insensitive.
	for _, o := range objs {
		if o.Type != "index" && o.Type != "trigger" {
			continue
		}
		owner := strings.ToLower(o.Table)
		src, ok := byName[owner]
		switch {
		case ok && o.Type == "index":
			src.indexes = append(src.indexes, o.SQL)
		case ok:
			src.triggers = append(src.triggers, o.SQL)
		case o.Type == "trigger" && views[owner]:
			snap.viewTriggers = append(snap.viewTriggers, o.SQL)
		default:
			return nil, errs.New(errs.ErrUnsupportedSchema, "%s %q on %q cannot be placed in the tree", o.Type, o.Name, o.Table)
		}
	}

	for _, src := range snap.tables {
		if err := c.readTable(ctx, db, src); err != nil {
			return nil, errs.Annotate(err, src.name)
		}
	}
	return snap, nil
}

func (c *Converter) readTable(ctx context.Context, db *engine.DB, src *sourceTable) error {
	cols, err := db.Columns(ctx, src.name)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "failed to read columns")
	}
	names := make([]string, len(cols))
	hasPK := false
	for i, col := range cols {
		if col.Hidden != 0 {
			return errs.New(errs.ErrUnsupportedSchema, "generated or hidden column %q is not supported", col.Name)
		}
		names[i] = col.Name
		hasPK = hasPK || col.PrimaryKey > 0
	}
	src.columns = cols

	if !hasPK {
		alias, ok := schema.PickRowidAlias(names)
		if !ok {
			return errs.New(errs.ErrUnsupportedSchema, "table has no primary key and shadows every rowid alias")
		}
		src.rowidAlias = alias
	}

	err = db.ScanRows(ctx, src.name, names, src.rowidAlias, func(r rows.Row) error {
		src.rows = append(src.rows, r)
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "failed to read rows")
	}
	return nil
}

// canonicalTable builds the canonical table content from what was read.
func (c *Converter) canonicalTable(src *sourceTable, p shard.Policy) (*tree.Table, int, error) {
	tbl, err := schema.CanonicalizeTable(src.sql)
	if err != nil {
		return nil, 0, err
	}
	if len(tbl.Columns) != len(src.columns) {
		return nil, 0, errs.New(errs.ErrUnsupportedSchema, "declared columns %v do not match stored columns", tbl.ColumnNames())
	}

	d := &schema.Descriptor{
		Name:   src.name,
		RowKey: schema.RowKeyPrimary,
		Shard:  schema.ShardSpec{TargetRows: p.TargetRows, MaxNameBytes: p.MaxNameBytes},
	}
	if src.rowidAlias != "" {
		d.RowKey = schema.RowKeyRowid
		d.RowidColumn = src.rowidAlias
	}
	for i, col := range src.columns {
		if !strings.EqualFold(col.Name, tbl.Columns[i].Name) {
			return nil, 0, errs.New(errs.ErrUnsupportedSchema, "declared column %q does not match stored column %q", tbl.Columns[i].Name, col.Name)
		}
		d.Columns = append(d.Columns, schema.ColumnSpec{
			Name:       col.Name,
			Type:       tbl.Columns[i].Type,
			PrimaryKey: col.PrimaryKey,
		})
	}
	if err := d.Validate(); err != nil {
		return nil, 0, errs.Wrap(errs.ErrUnsupportedSchema, err, "invalid descriptor")
	}

	t := &tree.Table{Descriptor: d, Schema: tbl.SQL}
	if t.Indexes, err = canonicalScript(src.indexes, true); err != nil {
		return nil, 0, err
	}
	if t.Triggers, err = canonicalScript(src.triggers, true); err != nil {
		return nil, 0, err
	}

	recs, dups, err := rows.Canonicalize(rows.LayoutOf(d), src.rows, c.tableLogger(src.name))
	if err != nil {
		return nil, 0, err
	}
	t.Records = recs
	return t, dups, nil
}

// checkStoredPolicy warns when the tree in outDir recorded different shard
// parameters for table. Output never depends on them: the whole table is
// resharded with the converter's policy.
func (c *Converter) checkStoredPolicy(outDir, table string) {
	data, err := os.ReadFile(filepath.Join(outDir, schema.EscapeName(table), tree.DescriptorFile))
	if err != nil {
		return
	}
	d, err := schema.ParseDescriptor(data)
	if err != nil || d.Name != table {
		return
	}
	stored := shard.Policy{TargetRows: d.Shard.TargetRows, MaxNameBytes: d.Shard.MaxNameBytes}
	if stored != c.policy {
		c.tableLogger(table).Printf("warning: resharding from target_rows=%d max_name_bytes=%d to target_rows=%d max_name_bytes=%d",
			stored.TargetRows, stored.MaxNameBytes, c.policy.TargetRows, c.policy.MaxNameBytes)
	}
}

func canonicalScript(stmts []string, upper bool) (string, error) {
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		cs, err := schema.CanonicalizeStatement(s, upper)
		if err != nil {
			return "", errs.Wrap(errs.ErrUnsupportedSchema, err, "statement %q", s)
		}
		out = append(out, cs)
	}
	return tree.Script(out), nil
}

func isInternal(name string) bool {
	return len(name) >= 7 && strings.EqualFold(name[:7], "sqlite_")
}
