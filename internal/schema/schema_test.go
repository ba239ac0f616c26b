package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("CREATE TABLE [my t] (-- comment\n `a` int, 'b' /* x */ TEXT DEFAULT 'it''s', c BLOB DEFAULT x'00ff')")
	require.NoError(t, err)

	var kinds []TokenKind
	var texts []string
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{
		"CREATE", "TABLE", "my t", "(", "a", "int", ",", "'b'", "TEXT", "DEFAULT", "'it''s'",
		",", "c", "BLOB", "DEFAULT", "X'00ff'", ")",
	}, texts)
	assert.Equal(t, TokenIdent, kinds[2])
	assert.Equal(t, TokenString, kinds[10])
	assert.Equal(t, TokenBlob, kinds[15])
}

func TestTokenizeUnterminated(t *testing.T) {
	for _, in := range []string{"SELECT 'abc", `CREATE TABLE "t`, "CREATE TABLE [t"} {
		if _, err := Tokenize(in); !errors.Is(err, errs.ErrMalformedTree) {
			t.Errorf("Tokenize(%q) error = %v, want ErrMalformedTree", in, err)
		}
	}
}

func TestCanonicalizeTable(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		cols []Column
	}{
		{
			name: "simple",
			in:   "create table t(id integer primary key, v text)",
			want: "CREATE TABLE \"t\" (\n  \"id\" INTEGER PRIMARY KEY,\n  \"v\" TEXT\n)",
			cols: []Column{{Name: "id", Type: "INTEGER"}, {Name: "v", Type: "TEXT"}},
		},
		{
			name: "comments and whitespace",
			in:   "CREATE TABLE IF NOT EXISTS main.[Users]  (\n  -- key\n  Id   INT NOT NULL,\n  name varchar ( 10 ) default 'x' /* c */,\n  PRIMARY KEY(Id)\n) without rowid;",
			want: "CREATE TABLE \"Users\" (\n  \"Id\" INT NOT NULL,\n  \"name\" VARCHAR(10) DEFAULT 'x',\n  PRIMARY KEY (Id)\n) WITHOUT ROWID",
			cols: []Column{{Name: "Id", Type: "INT"}, {Name: "name", Type: "VARCHAR(10)"}},
		},
		{
			name: "untyped columns and expressions",
			in:   `CREATE TABLE "a""b" (x, y DEFAULT -1 CHECK(y>=-5), z REFERENCES p(id) ON DELETE cascade)`,
			want: "CREATE TABLE \"a\"\"b\" (\n  \"x\",\n  \"y\" DEFAULT -1 CHECK (y >= -5),\n  \"z\" REFERENCES p(id) ON DELETE CASCADE\n)",
			cols: []Column{{Name: "x"}, {Name: "y"}, {Name: "z"}},
		},
		{
			name: "strict",
			in:   "CREATE TABLE s (k TEXT PRIMARY KEY, n ANY) STRICT, WITHOUT ROWID",
			want: "CREATE TABLE \"s\" (\n  \"k\" TEXT PRIMARY KEY,\n  \"n\" ANY\n) WITHOUT ROWID, STRICT",
			cols: []Column{{Name: "k", Type: "TEXT"}, {Name: "n", Type: "ANY"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := CanonicalizeTable(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tbl.SQL)
			assert.Equal(t, tt.cols, tbl.Columns)

			again, err := CanonicalizeTable(tbl.SQL)
			require.NoError(t, err)
			assert.Equal(t, tbl.SQL, again.SQL, "canonical form must be a fixed point")
		})
	}
}

func TestCanonicalizeTableUnsupported(t *testing.T) {
	inputs := []string{
		"CREATE VIRTUAL TABLE f USING fts5(body)",
		"CREATE TABLE g (a INT, b INT GENERATED ALWAYS AS (a * 2) STORED)",
		"CREATE TABLE h (a INT, b INT AS (a + 1))",
		"CREATE TEMP TABLE t (a)",
	}
	for _, in := range inputs {
		if _, err := CanonicalizeTable(in); !errors.Is(err, errs.ErrUnsupportedSchema) {
			t.Errorf("CanonicalizeTable(%q) error = %v, want ErrUnsupportedSchema", in, err)
		}
	}
}

func TestCanonicalizeTableMalformed(t *testing.T) {
	inputs := []string{
		"",
		"CREATE INDEX i ON t(a)",
		"CREATE TABLE t (a INT",
		"CREATE TABLE t ()",
		"CREATE TABLE t (a) WITH ROWID",
	}
	for _, in := range inputs {
		if _, err := CanonicalizeTable(in); !errors.Is(err, errs.ErrMalformedTree) {
			t.Errorf("CanonicalizeTable(%q) error = %v, want ErrMalformedTree", in, err)
		}
	}
}

func TestCanonicalizeStatement(t *testing.T) {
	tests := []struct {
		in    string
		upper bool
		want  string
	}{
		{"create  unique index idx_v on t ( v  desc );", true, "CREATE UNIQUE INDEX idx_v ON t(v DESC)"},
		{
			"CREATE TRIGGER tr AFTER INSERT ON t BEGIN\n  update t set v = upper(v) where id = new.id;\nEND",
			true,
			"CREATE TRIGGER tr AFTER INSERT ON t BEGIN UPDATE t SET v = upper(v) WHERE id = new.id; END",
		},
		{"create index i on t ( [v] )", false, `create index i on t("v")`},
	}
	for _, tt := range tests {
		got, err := CanonicalizeStatement(tt.in, tt.upper)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		again, err := CanonicalizeStatement(got, tt.upper)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestCanonicalizeView(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CREATE VIEW v AS SELECT a+b, [c] FROM t", "CREATE VIEW v AS SELECT a+b, [c] FROM t"},
		{"\n  CREATE VIEW v AS\n  SELECT 1 ;; \n", "CREATE VIEW v AS\n  SELECT 1"},
		{"CREATE VIEW v AS SELECT 1 -- one", "CREATE VIEW v AS SELECT 1 -- one\n"},
	}
	for _, tt := range tests {
		got, err := CanonicalizeView(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		again, err := CanonicalizeView(got)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}

	_, err := CanonicalizeView("SELECT 1")
	assert.ErrorIs(t, err, errs.ErrMalformedTree)
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"users", "users"},
		{"user_events-2", "user_events-2"},
		{"my table", "my$20$table"},
		{"a/b", "a$2f$b"},
		{".hidden", "$2e$hidden"},
		{"v1.2", "v1.2"},
		{"price$", "price$24$"},
		{"日本", "$e697a5e69cac$"},
		{"FORMAT", "$46$ORMAT"},
		{"views.sql", "$76$iews.sql"},
		{"view_triggers.sql", "$76$iew_triggers.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeName(tt.name)
			assert.Equal(t, tt.want, got)

			back, err := UnescapeName(got)
			require.NoError(t, err)
			assert.Equal(t, tt.name, back)
		})
	}
}

func TestUnescapeNameRejectsNonCanonical(t *testing.T) {
	for _, dir := range []string{"a$20", "a$zz$b", "$$", "$61$bc", "FORMAT", ""} {
		if _, err := UnescapeName(dir); !errors.Is(err, errs.ErrMalformedTree) {
			t.Errorf("UnescapeName(%q) error = %v, want ErrMalformedTree", dir, err)
		}
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := &Descriptor{
		Name:   "orders",
		RowKey: RowKeyPrimary,
		Shard:  ShardSpec{TargetRows: 256, MaxNameBytes: 32},
		Columns: []ColumnSpec{
			{Name: "region", Type: "TEXT", PrimaryKey: 2},
			{Name: "id", Type: "INTEGER", PrimaryKey: 1},
			{Name: "total"},
		},
	}
	require.NoError(t, d.Validate())

	data, err := d.Marshal()
	require.NoError(t, err)

	got, err := ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.Equal(t, []int{1, 0}, got.KeyColumns())
	assert.Equal(t, []string{"region", "id", "total"}, got.ColumnNames())

	again, err := got.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestParseDescriptorInvalid(t *testing.T) {
	inputs := []string{
		"name = ",
		"name = \"t\"\nrow_key = \"rowid\"\nrowid_column = \"rowid\"\nbogus = 1\n[shard]\ntarget_rows = 1\nmax_name_bytes = 1\n[[columns]]\nname = \"a\"\n",
		"name = \"t\"\nrow_key = \"primary_key\"\n[shard]\ntarget_rows = 1\nmax_name_bytes = 1\n[[columns]]\nname = \"a\"\n",
		"name = \"t\"\nrow_key = \"rowid\"\nrowid_column = \"id\"\n[shard]\ntarget_rows = 1\nmax_name_bytes = 1\n[[columns]]\nname = \"a\"\n",
		"name = \"t\"\nrow_key = \"rowid\"\nrowid_column = \"rowid\"\n[shard]\ntarget_rows = 0\nmax_name_bytes = 1\n[[columns]]\nname = \"a\"\n",
	}
	for _, in := range inputs {
		if _, err := ParseDescriptor([]byte(in)); !errors.Is(err, errs.ErrMalformedTree) {
			t.Errorf("ParseDescriptor(%q) error = %v, want ErrMalformedTree", in, err)
		}
	}
}

func TestPickRowidAlias(t *testing.T) {
	alias, ok := PickRowidAlias([]string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, "rowid", alias)

	alias, ok = PickRowidAlias([]string{"ROWID", "_rowid_"})
	assert.True(t, ok)
	assert.Equal(t, "oid", alias)

	_, ok = PickRowidAlias([]string{"rowid", "_rowid_", "OID"})
	assert.False(t, ok)
}
