package schema

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// RowKey names how records of a table are identified.
type RowKey string

const (
	// RowKeyPrimary keys records by their declared primary key columns.
	RowKeyPrimary RowKey = "primary_key"
	// RowKeyRowid keys records by the implicit rowid.
	RowKeyRowid RowKey = "rowid"
)

// RowidAliases are the names SQLite accepts for the implicit rowid, in the
// order they are tried.
var RowidAliases = []string{"rowid", "_rowid_", "oid"}

// Descriptor is the machine-readable summary of a table stored next to
// its schema as table.toml. It pins column order, row identity and the
// shard parameters the tree was written with.
type Descriptor struct {
	Name        string       `toml:"name"`
	RowKey      RowKey       `toml:"row_key"`
	RowidColumn string       `toml:"rowid_column,omitempty"`
	Shard       ShardSpec    `toml:"shard"`
	Columns     []ColumnSpec `toml:"columns"`
}

// ShardSpec records the shard policy parameters.
type ShardSpec struct {
	TargetRows   int `toml:"target_rows"`
	MaxNameBytes int `toml:"max_name_bytes"`
}

// ColumnSpec describes one column. PrimaryKey is the 1-based position of
// the column within the primary key, or 0.
type ColumnSpec struct {
	Name       string `toml:"name"`
	Type       string `toml:"type,omitempty"`
	PrimaryKey int    `toml:"primary_key,omitempty"`
}

// ColumnNames returns the column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the indexes of the primary key columns in key order.
// It returns nil for rowid-keyed tables.
func (d *Descriptor) KeyColumns() []int {
	if d.RowKey != RowKeyPrimary {
		return nil
	}
	var n int
	for _, c := range d.Columns {
		if c.PrimaryKey > n {
			n = c.PrimaryKey
		}
	}
	idx := make([]int, n)
	for i, c := range d.Columns {
		if c.PrimaryKey > 0 {
			idx[c.PrimaryKey-1] = i
		}
	}
	return idx
}

// Validate checks the descriptor's internal consistency.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", d.Name)
	}
	if d.Shard.TargetRows < 1 {
		return fmt.Errorf("shard.target_rows must be positive, got %d", d.Shard.TargetRows)
	}
	if d.Shard.MaxNameBytes < 1 {
		return fmt.Errorf("shard.max_name_bytes must be positive, got %d", d.Shard.MaxNameBytes)
	}

	seen := make(map[string]bool, len(d.Columns))
	positions := make(map[int]bool)
	for _, c := range d.Columns {
		if c.Name == "" {
			return fmt.Errorf("column name is required")
		}
		folded := strings.ToLower(c.Name)
		if seen[folded] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[folded] = true
		if c.PrimaryKey < 0 || c.PrimaryKey > len(d.Columns) || positions[c.PrimaryKey] && c.PrimaryKey > 0 {
			return fmt.Errorf("column %q has invalid primary_key position %d", c.Name, c.PrimaryKey)
		}
		if c.PrimaryKey > 0 {
			positions[c.PrimaryKey] = true
		}
	}
	for i := 1; i <= len(positions); i++ {
		if !positions[i] {
			return fmt.Errorf("primary key positions are not contiguous")
		}
	}

	switch d.RowKey {
	case RowKeyPrimary:
		if len(positions) == 0 {
			return fmt.Errorf("row_key %q requires primary key columns", d.RowKey)
		}
		if d.RowidColumn != "" {
			return fmt.Errorf("rowid_column is only valid with row_key %q", RowKeyRowid)
		}
	case RowKeyRowid:
		if len(positions) != 0 {
			return fmt.Errorf("row_key %q cannot have primary key columns", d.RowKey)
		}
		if !isRowidAlias(d.RowidColumn) {
			return fmt.Errorf("rowid_column %q is not a rowid alias", d.RowidColumn)
		}
	default:
		return fmt.Errorf("unknown row_key %q", d.RowKey)
	}
	return nil
}

// Marshal renders the descriptor as TOML.
func (d *Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDescriptor decodes and validates a table.toml file.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	md, err := toml.Decode(string(data), &d)
	if err != nil {
		return nil, errs.Wrap(errs.ErrMalformedTree, err, "invalid descriptor")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errs.New(errs.ErrMalformedTree, "unknown descriptor key %q", undecoded[0].String())
	}
	if err := d.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedTree, err, "invalid descriptor")
	}
	return &d, nil
}

// PickRowidAlias returns the first rowid alias not shadowed by a column.
func PickRowidAlias(columns []string) (string, bool) {
	for _, alias := range RowidAliases {
		shadowed := false
		for _, c := range columns {
			if strings.EqualFold(c, alias) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			return alias, true
		}
	}
	return "", false
}

func isRowidAlias(s string) bool {
	for _, a := range RowidAliases {
		if s == a {
			return true
		}
	}
	return false
}
