// Package tree lays canonical tables out as files and reads them back.
//
// The on-disk layout is:
//
//	FORMAT                  "sqltree v1.0.0"
//	views.sql               CREATE VIEW statements, omitted when empty
//	view_triggers.sql       INSTEAD OF triggers on views, omitted when empty
//	<table>/table.toml      descriptor: name, row key, columns, shard params
//	<table>/schema.sql      canonical CREATE TABLE
//	<table>/indexes.sql     CREATE INDEX statements, omitted when empty
//	<table>/triggers.sql    CREATE TRIGGER statements, omitted when empty
//	<table>/rows/<shard>.tsv
//
// Root entries starting with '.' (.git, .jj, ...) are never read or
// modified, and top-level directories without a table.toml are left alone.
package tree

import (
	"fmt"
	"path"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/shard"
)

// Table is the canonical content of one table directory.
type Table struct {
	Descriptor *schema.Descriptor
	Schema     string // canonical CREATE TABLE, without terminator
	Indexes    string // script, empty when the table has none
	Triggers   string // script, empty when the table has none
	Records    []rows.Record
}

// Files maps slash-separated paths relative to the tree root to content.
type Files map[string][]byte

// Merge copies every entry of other into f.
func (f Files) Merge(other Files) {
	for p, data := range other {
		f[p] = data
	}
}

// Script joins canonical statements into file content, one statement per
// paragraph.
func Script(stmts []string) string {
	var b strings.Builder
	for i, s := range stmts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
		b.WriteString(";\n")
	}
	return b.String()
}

// RootFiles renders the files at the tree root.
func RootFiles(views, viewTriggers string) Files {
	f := Files{formatFile: formatContent()}
	if views != "" {
		f[viewsFile] = []byte(views)
	}
	if viewTriggers != "" {
		f[viewTrigFile] = []byte(viewTriggers)
	}
	return f
}

// TableFiles renders the files of one table directory.
func TableFiles(t *Table) (Files, error) {
	d := t.Descriptor
	if d == nil {
		return nil, fmt.Errorf("table has no descriptor")
	}
	meta, err := d.Marshal()
	if err != nil {
		return nil, err
	}

	dir := schema.EscapeName(d.Name)
	f := Files{
		path.Join(dir, DescriptorFile): meta,
		path.Join(dir, schemaFile):     []byte(t.Schema + ";\n"),
	}
	if t.Indexes != "" {
		f[path.Join(dir, indexesFile)] = []byte(t.Indexes)
	}
	if t.Triggers != "" {
		f[path.Join(dir, triggersFile)] = []byte(t.Triggers)
	}

	p := shard.Policy{TargetRows: d.Shard.TargetRows, MaxNameBytes: d.Shard.MaxNameBytes}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("table %q: %w", d.Name, err)
	}
	keys := make([][]byte, len(t.Records))
	for i, r := range t.Records {
		keys[i] = r.Key
	}
	for _, s := range p.Partition(keys) {
		f[path.Join(dir, rowsDir, s.Name+shardExt)] = rows.Render(t.Records[s.Start:s.End])
	}
	return f, nil
}
