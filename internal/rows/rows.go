// Package rows turns table rows into canonical record lines and back.
//
// A record line is the row key followed by every column value, tab
// separated:
//
//	1	1	"a"
//	@7	null	x00ff
//	"eu",42	42	"eu"	1.5
//
// Primary-key tables use the comma-joined primary key values as the key.
// Tables without a primary key use "@" followed by the rowid.
package rows

import (
	"bytes"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/value"
)

// Row is one table row as read from or written to the database.
// RowID is only meaningful for rowid-keyed tables.
type Row struct {
	RowID  int64
	Values []value.Value
}

// Record is a row in canonical form.
type Record struct {
	// Key is the order-preserving encoding of the row key.
	Key []byte
	// Line is the record line without its trailing newline.
	Line string
	Row  Row
}

// Layout describes how rows of one table are keyed.
type Layout struct {
	Columns    int
	KeyColumns []int // primary key column indexes in key order; empty for rowid tables
}

// LayoutOf derives a Layout from a table descriptor.
func LayoutOf(d *schema.Descriptor) Layout {
	return Layout{Columns: len(d.Columns), KeyColumns: d.KeyColumns()}
}

// RowidKeyed reports whether records are keyed by rowid.
func (l Layout) RowidKeyed() bool {
	return len(l.KeyColumns) == 0
}

func (l Layout) keyValues(r Row) []value.Value {
	if l.RowidKeyed() {
		return []value.Value{value.Integer(r.RowID)}
	}
	kv := make([]value.Value, len(l.KeyColumns))
	for i, c := range l.KeyColumns {
		kv[i] = r.Values[c]
	}
	return kv
}

// Encode renders r as a canonical record.
func (l Layout) Encode(r Row) (Record, error) {
	if len(r.Values) != l.Columns {
		return Record{}, errs.New(errs.ErrSchemaMismatch, "row has %d values, table has %d columns", len(r.Values), l.Columns)
	}
	kv := l.keyValues(r)

	var line []byte
	var err error
	if l.RowidKeyed() {
		line = append(line, '@')
		line = strconv.AppendInt(line, r.RowID, 10)
	} else {
		for i, v := range kv {
			if i > 0 {
				line = append(line, ',')
			}
			if line, err = value.Append(line, v); err != nil {
				return Record{}, err
			}
		}
	}
	for _, v := range r.Values {
		line = append(line, '\t')
		if line, err = value.Append(line, v); err != nil {
			return Record{}, err
		}
	}
	return Record{Key: value.Key(kv...), Line: string(line), Row: r}, nil
}

// Decode parses a record line. The leading key is checked against the
// values it must repeat.
func (l Layout) Decode(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != l.Columns+1 {
		return Record{}, errs.New(errs.ErrSchemaMismatch, "record has %d values, table has %d columns", len(fields)-1, l.Columns)
	}

	r := Row{Values: make([]value.Value, l.Columns)}
	for i, f := range fields[1:] {
		v, err := value.Decode(f)
		if err != nil {
			return Record{}, err
		}
		r.Values[i] = v
	}

	keyField := fields[0]
	if l.RowidKeyed() {
		if !strings.HasPrefix(keyField, "@") {
			return Record{}, errs.New(errs.ErrMalformedTree, "rowid key %q must start with '@'", keyField)
		}
		v, err := value.Decode(keyField[1:])
		if err != nil {
			return Record{}, errs.Wrap(errs.ErrMalformedTree, err, "rowid key %q", keyField)
		}
		id, ok := v.(value.Integer)
		if !ok {
			return Record{}, errs.New(errs.ErrMalformedTree, "rowid key %q is not an integer", keyField)
		}
		r.RowID = int64(id)
	} else {
		parts, err := splitKey(keyField)
		if err != nil {
			return Record{}, err
		}
		want := l.keyValues(r)
		if len(parts) != len(want) {
			return Record{}, errs.New(errs.ErrMalformedTree, "row key %q has %d parts, primary key has %d columns", keyField, len(parts), len(want))
		}
		for i, p := range parts {
			v, err := value.Decode(p)
			if err != nil {
				return Record{}, errs.Wrap(errs.ErrMalformedTree, err, "row key %q", keyField)
			}
			if !value.Equal(v, want[i]) {
				return Record{}, errs.New(errs.ErrMalformedTree, "row key %q does not match primary key values", keyField)
			}
		}
	}
	return Record{Key: value.Key(l.keyValues(r)...), Line: line, Row: r}, nil
}

// splitKey splits a comma-joined key, skipping commas inside quoted text.
func splitKey(s string) ([]string, error) {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			j := i + 1
			for ; j < len(s) && s[j] != '"'; j++ {
				if s[j] == '\\' {
					j++
				}
			}
			if j >= len(s) {
				return nil, errs.New(errs.ErrMalformedTree, "unterminated text in row key %q", s)
			}
			i = j
		case ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:]), nil
}

// Compare orders records by key, then by line. It is the canonical record
// order.
func Compare(a, b Record) int {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return strings.Compare(a.Line, b.Line)
}

// Canonicalize encodes rows and sorts them into canonical order. Rows that
// share a key are kept; they are ordered by their full record text and a
// NonUniqueRowKey warning is logged once per duplicated key. It returns
// the number of duplicated keys.
func Canonicalize(l Layout, in []Row, logger *log.Logger) ([]Record, int, error) {
	recs := make([]Record, 0, len(in))
	for _, r := range in {
		rec, err := l.Encode(r)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	slices.SortStableFunc(recs, Compare)

	dups := 0
	for i := 1; i < len(recs); i++ {
		if bytes.Equal(recs[i].Key, recs[i-1].Key) && (i == 1 || !bytes.Equal(recs[i-1].Key, recs[i-2].Key)) {
			dups++
			if logger != nil {
				key, _, _ := strings.Cut(recs[i].Line, "\t")
				logger.Printf("warning: %v: key %s", errs.ErrNonUniqueRowKey, key)
			}
		}
	}
	return recs, dups, nil
}

// Render joins records into file content, one line each with a trailing
// newline.
func Render(recs []Record) []byte {
	n := 0
	for _, r := range recs {
		n += len(r.Line) + 1
	}
	buf := make([]byte, 0, n)
	for _, r := range recs {
		buf = append(buf, r.Line...)
		buf = append(buf, '\n')
	}
	return buf
}

// Parse splits shard file content into records. Each line must be
// terminated by a newline and records must already be in canonical order.
func Parse(l Layout, data []byte) ([]Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[len(data)-1] != '\n' {
		return nil, errs.New(errs.ErrMalformedTree, "missing trailing newline")
	}
	lines := strings.Split(string(data[:len(data)-1]), "\n")
	recs := make([]Record, 0, len(lines))
	for i, line := range lines {
		if line == "" {
			return nil, errs.New(errs.ErrMalformedTree, "empty record line").InFile("", i+1)
		}
		rec, err := l.Decode(line)
		if err != nil {
			return nil, atLine(err, i+1)
		}
		if len(recs) > 0 && Compare(recs[len(recs)-1], rec) > 0 {
			return nil, errs.New(errs.ErrMalformedTree, "record out of order").InFile("", i+1)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func atLine(err error, line int) error {
	if e, ok := err.(*errs.Error); ok {
		return e.InFile(e.File, line)
	}
	return err
}
