package tree

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/value"
)

var quiet = log.New(io.Discard, "", 0)

// testTable builds a two-column table keyed by an integer id.
func testTable(t *testing.T, name string, targetRows int, ids ...int) *Table {
	t.Helper()

	d := &schema.Descriptor{
		Name:   name,
		RowKey: schema.RowKeyPrimary,
		Shard:  schema.ShardSpec{TargetRows: targetRows, MaxNameBytes: 32},
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: "INTEGER", PrimaryKey: 1},
			{Name: "v", Type: "TEXT"},
		},
	}
	tbl, err := schema.CanonicalizeTable("CREATE TABLE " + schema.QuoteIdent(name) + " (id INTEGER PRIMARY KEY, v TEXT)")
	if err != nil {
		t.Fatalf("CanonicalizeTable() failed: %v", err)
	}

	var in []rows.Row
	for _, id := range ids {
		in = append(in, rows.Row{Values: []value.Value{value.Integer(id), value.Text("row")}})
	}
	recs, _, err := rows.Canonicalize(rows.LayoutOf(d), in, nil)
	if err != nil {
		t.Fatalf("Canonicalize() failed: %v", err)
	}
	return &Table{Descriptor: d, Schema: tbl.SQL, Records: recs}
}

func desiredFiles(t *testing.T, views string, tables ...*Table) Files {
	t.Helper()

	f := RootFiles(views, "")
	for _, tbl := range tables {
		tf, err := TableFiles(tbl)
		if err != nil {
			t.Fatalf("TableFiles() failed: %v", err)
		}
		f.Merge(tf)
	}
	return f
}

func TestWriterCreatesThenNoOp(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, quiet)
	desired := desiredFiles(t, "", testTable(t, "users", 4, 1, 2, 3, 4, 5, 6, 7, 8))

	p, err := w.Write(desired)
	require.NoError(t, err)
	created, updated, deleted := p.Count()
	assert.Equal(t, len(desired), created)
	assert.Zero(t, updated)
	assert.Zero(t, deleted)

	for rel, data := range desired {
		got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, string(data), string(got), rel)
	}

	again, err := w.Plan(desired)
	require.NoError(t, err)
	assert.True(t, again.Empty(), "second plan = %+v", again.Changes)
}

func TestWriterRemovesStaleTable(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, quiet)

	_, err := w.Write(desiredFiles(t, "CREATE VIEW v AS SELECT 1;\n", testTable(t, "a", 4, 1, 2), testTable(t, "b", 4, 1)))
	require.NoError(t, err)

	_, err = w.Write(desiredFiles(t, "", testTable(t, "a", 4, 1, 2)))
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(root, "b"))
	assert.NoFileExists(t, filepath.Join(root, "views.sql"))
	assert.FileExists(t, filepath.Join(root, "a", "table.toml"))
}

func TestViewTriggersFile(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, quiet)

	views := "CREATE VIEW v AS SELECT 1 AS x;\n"
	trig := "CREATE TRIGGER vt INSTEAD OF INSERT ON v BEGIN SELECT 1; END;\n"
	_, err := w.Write(RootFiles(views, trig))
	require.NoError(t, err)

	r := NewReader(root, quiet)
	got, err := r.ViewTriggers()
	require.NoError(t, err)
	assert.Equal(t, trig, got)

	_, err = w.Write(RootFiles(views, ""))
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "view_triggers.sql"))
	got, err = r.ViewTriggers()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriterLeavesForeignEntries(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{".git/HEAD", ".jj/repo/store", "docs/README.md", "notes.txt"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("keep"), 0o644))
	}
	leftover := filepath.Join(root, ".sqltree-123.tmp")
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0o644))

	w := NewWriter(root, quiet)
	_, err := w.Write(desiredFiles(t, "", testTable(t, "a", 4, 1)))
	require.NoError(t, err)

	for _, p := range []string{".git/HEAD", ".jj/repo/store", "docs/README.md", "notes.txt"} {
		assert.FileExists(t, filepath.Join(root, filepath.FromSlash(p)))
	}
	assert.NoFileExists(t, leftover)
}

func TestWriterRemovesStrayFilesInTableDir(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, quiet)
	_, err := w.Write(desiredFiles(t, "", testTable(t, "a", 4, 1)))
	require.NoError(t, err)

	stray := filepath.Join(root, "a", "rows", "kffff.tsv")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))

	p, err := w.Write(desiredFiles(t, "", testTable(t, "a", 4, 1)))
	require.NoError(t, err)
	assert.Equal(t, []Change{{Op: OpDelete, Path: "a/rows/kffff.tsv"}}, p.Changes)
	assert.NoFileExists(t, stray)
}

func TestEmptyTableHasNoRowsDir(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, quiet)
	_, err := w.Write(desiredFiles(t, "", testTable(t, "a", 4, 1, 2)))
	require.NoError(t, err)

	_, err = w.Write(desiredFiles(t, "", testTable(t, "a", 4)))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "a", "schema.sql"))
	assert.NoDirExists(t, filepath.Join(root, "a", "rows"))
}

func TestReadTableRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := testTable(t, "my table", 2, 5, 1, 9, 3, 7, 11, 13, 2)
	want.Indexes = Script([]string{"CREATE INDEX i ON \"my table\"(v)"})
	_, err := NewWriter(root, quiet).Write(desiredFiles(t, "", want))
	require.NoError(t, err)

	require.NoError(t, CheckFormat(root))
	r := NewReader(root, quiet)
	dirs, err := r.TableDirs()
	require.NoError(t, err)
	assert.Equal(t, []string{"my$20$table"}, dirs)

	got, err := r.ReadTable(dirs[0])
	require.NoError(t, err)
	assert.Equal(t, want.Descriptor, got.Descriptor)
	assert.Equal(t, want.Schema, got.Schema)
	assert.Equal(t, "CREATE INDEX i ON \"my table\"(v);\n", got.Indexes)
	require.Len(t, got.Records, len(want.Records))
	for i := range want.Records {
		assert.Equal(t, want.Records[i].Line, got.Records[i].Line)
	}
}

func TestReadTableMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
		want   error
	}{
		{
			name: "record in wrong shard",
			mutate: func(t *testing.T, dir string) {
				// The head shard may only hold keys below the first boundary.
				require.NoError(t, os.WriteFile(filepath.Join(dir, "rows", "0.tsv"), []byte("1000\t1000\t\"row\"\n"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "rows", "k15.tsv"), []byte("1\t1\t\"row\"\n"), 0o644))
			},
			want: errs.ErrMalformedTree,
		},
		{
			name: "bad shard name",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "rows", "extra.txt"), nil, 0o644))
			},
			want: errs.ErrMalformedTree,
		},
		{
			name: "column mismatch",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.sql"), []byte("CREATE TABLE \"t\" (\"id\" INTEGER PRIMARY KEY, \"w\" TEXT);\n"), 0o644))
			},
			want: errs.ErrSchemaMismatch,
		},
		{
			name: "record arity",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "rows", "0.tsv"), []byte("1\t1\n"), 0o644))
			},
			want: errs.ErrSchemaMismatch,
		},
		{
			name: "bad value",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "rows", "0.tsv"), []byte("1\t1\trow\n"), 0o644))
			},
			want: errs.ErrMalformedValue,
		},
		{
			name: "missing schema",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "schema.sql")))
			},
			want: errs.ErrMalformedTree,
		},
		{
			name: "descriptor for another table",
			mutate: func(t *testing.T, dir string) {
				data, err := os.ReadFile(filepath.Join(dir, "table.toml"))
				require.NoError(t, err)
				data = []byte(strings.Replace(string(data), `name = "t"`, `name = "u"`, 1))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "table.toml"), data, 0o644))
			},
			want: errs.ErrMalformedTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			// A huge target keeps every record in the head shard.
			_, err := NewWriter(root, quiet).Write(desiredFiles(t, "", testTable(t, "t", 1<<30, 1, 2)))
			require.NoError(t, err)
			tt.mutate(t, filepath.Join(root, "t"))

			_, err = NewReader(root, quiet).ReadTable("t")
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadTable() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		content string
		ok      bool
	}{
		{"sqltree v1.0.0\n", true},
		{"sqltree v1.0.0", true},
		{"sqltree v0.9.0\n", false},
		{"sqltree v1.1.0\n", false},
		{"sqltree v2.0.0\n", false},
		{"stfg v1.0.0\n", false},
		{"sqltree 1.0\n", false},
	}
	for _, tt := range tests {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "FORMAT"), []byte(tt.content), 0o644))
		err := CheckFormat(root)
		if tt.ok {
			assert.NoError(t, err, tt.content)
		} else {
			assert.ErrorIs(t, err, errs.ErrMalformedTree, tt.content)
		}
	}

	assert.ErrorIs(t, CheckFormat(t.TempDir()), errs.ErrMalformedTree)
}
