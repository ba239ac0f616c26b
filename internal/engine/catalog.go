package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Object is one entry of sqlite_schema.
type Object struct {
	Type  string // table, index, trigger or view
	Name  string
	Table string
	SQL   string
}

// Objects lists every schema object that has SQL text, ordered by type
// and name. Automatic indexes backing UNIQUE and PRIMARY KEY constraints
// have no SQL and are omitted.
func (db *DB) Objects(ctx context.Context) ([]Object, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT type, name, tbl_name, sql
		FROM sqlite_schema
		WHERE sql IS NOT NULL
		ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	defer rows.Close()

	var objs []Object
	for rows.Next() {
		var o Object
		var text sql.NullString
		if err := rows.Scan(&o.Type, &o.Name, &o.Table, &text); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		o.SQL = text.String
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	return objs, nil
}

// TableKinds maps every table-like object in the main schema to its kind:
// "table", "view", "virtual" or "shadow".
func (db *DB) TableKinds(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name, type FROM pragma_table_list WHERE schema = 'main'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	kinds := make(map[string]string)
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		kinds[name] = kind
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return kinds, nil
}

// ColumnInfo is one row of PRAGMA table_xinfo.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey int // 1-based position in the primary key, 0 if not part of it
	Hidden     int // 0 normal, 1 hidden, 2 or 3 generated
}

// Columns returns the columns of a table in declaration order.
func (db *DB) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT name, type, "notnull", pk, hidden
		FROM pragma_table_xinfo(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.NotNull, &c.PrimaryKey, &c.Hidden); err != nil {
			return nil, fmt.Errorf("failed to scan column of %q: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %q: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return cols, nil
}
