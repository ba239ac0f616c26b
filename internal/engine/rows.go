package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncruces/go-sqlite3"

	"github.com/Mschirtzinger/sqltree/internal/rows"
	"github.com/Mschirtzinger/sqltree/internal/schema"
	"github.com/Mschirtzinger/sqltree/internal/value"
)

// ScanRows calls fn for every row of table. Values are read in the order
// of columns. When rowidAlias is set the row's rowid is read through that
// alias into Row.RowID.
func (db *DB) ScanRows(ctx context.Context, table string, columns []string, rowidAlias string, fn func(rows.Row) error) error {
	sel := make([]string, 0, len(columns)+1)
	if rowidAlias != "" {
		sel = append(sel, rowidAlias)
	}
	for _, c := range columns {
		sel = append(sel, schema.QuoteIdent(c))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), schema.QuoteIdent(table))

	err := db.raw(ctx, func(c *sqlite3.Conn) error {
		stmt, _, err := c.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		off := 0
		if rowidAlias != "" {
			off = 1
		}
		for stmt.Step() {
			r := rows.Row{Values: make([]value.Value, len(columns))}
			if off == 1 {
				r.RowID = stmt.ColumnInt64(0)
			}
			for i := range columns {
				r.Values[i] = columnValue(stmt, i+off)
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return stmt.Err()
	})
	if err != nil {
		return fmt.Errorf("failed to read rows of %q: %w", table, err)
	}
	return nil
}

// columnValue reads a cell keeping its storage class. ColumnType must be
// consulted before any conversion.
func columnValue(stmt *sqlite3.Stmt, col int) value.Value {
	switch stmt.ColumnType(col) {
	case sqlite3.INTEGER:
		return value.Integer(stmt.ColumnInt64(col))
	case sqlite3.FLOAT:
		return value.Real(stmt.ColumnFloat(col))
	case sqlite3.TEXT:
		return value.Text(stmt.ColumnText(col))
	case sqlite3.BLOB:
		return value.Blob(stmt.ColumnBlob(col, []byte{}))
	default:
		return value.Null{}
	}
}

// InsertRows inserts rs into table. When rowidAlias is set each row's
// RowID is inserted explicitly through that alias.
func (db *DB) InsertRows(ctx context.Context, table string, columns []string, rowidAlias string, rs []rows.Row) error {
	names := make([]string, 0, len(columns)+1)
	if rowidAlias != "" {
		names = append(names, rowidAlias)
	}
	for _, c := range columns {
		names = append(names, schema.QuoteIdent(c))
	}
	params := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", schema.QuoteIdent(table), strings.Join(names, ", "), params)

	err := db.raw(ctx, func(c *sqlite3.Conn) error {
		stmt, _, err := c.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for n, r := range rs {
			if len(r.Values) != len(columns) {
				return fmt.Errorf("row %d has %d values, want %d", n, len(r.Values), len(columns))
			}
			param := 1
			if rowidAlias != "" {
				if err := stmt.BindInt64(param, r.RowID); err != nil {
					return err
				}
				param++
			}
			for _, v := range r.Values {
				if err := bindValue(stmt, param, v); err != nil {
					return err
				}
				param++
			}
			if err := stmt.Exec(); err != nil {
				return fmt.Errorf("row %d: %w", n, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert rows into %q: %w", table, err)
	}
	return nil
}

func bindValue(stmt *sqlite3.Stmt, param int, v value.Value) error {
	switch x := v.(type) {
	case value.Integer:
		return stmt.BindInt64(param, int64(x))
	case value.Real:
		return stmt.BindFloat(param, float64(x))
	case value.Text:
		return stmt.BindText(param, string(x))
	case value.Blob:
		if len(x) == 0 {
			// A nil or empty slice would bind NULL.
			return stmt.BindZeroBlob(param, 0)
		}
		return stmt.BindBlob(param, x)
	default:
		return stmt.BindNull(param)
	}
}
