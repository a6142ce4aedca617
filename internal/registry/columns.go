package registry

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// ColumnTypes is the column type registry of one cache table.
// It maps column names and positions to logical kinds and records which
// columns form the primary key. It is read-only after construction and safe
// for concurrent use.
type ColumnTypes struct {
	columns    []core.Column
	positions  map[string]int
	primaryKey []int
}

// NewColumnTypes builds a registry from the destination columns, in cache
// order, and the primary key column names, in key order.
func NewColumnTypes(columns []core.Column, primaryKey []string) (*ColumnTypes, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}
	if len(primaryKey) == 0 {
		return nil, fmt.Errorf("at least one primary key column is required")
	}

	ct := &ColumnTypes{
		columns:    make([]core.Column, len(columns)),
		positions:  make(map[string]int, len(columns)),
		primaryKey: make([]int, 0, len(primaryKey)),
	}

	for i, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if col.Kind == core.KindInvalid {
			return nil, fmt.Errorf("column %q has no type", col.Name)
		}
		key := normalizeName(col.Name)
		if _, exists := ct.positions[key]; exists {
			return nil, fmt.Errorf("column %q is declared more than once", col.Name)
		}
		ct.positions[key] = i
		ct.columns[i] = col
	}

	seen := make(map[int]bool, len(primaryKey))
	for _, name := range primaryKey {
		pos, ok := ct.positions[normalizeName(name)]
		if !ok {
			return nil, fmt.Errorf("primary key column %q is not a declared column", name)
		}
		if seen[pos] {
			return nil, fmt.Errorf("primary key column %q is listed more than once", name)
		}
		seen[pos] = true
		ct.primaryKey = append(ct.primaryKey, pos)
	}

	return ct, nil
}

// Definition is the configuration form of a column: a name and a type name.
type Definition struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// FromDefinitions parses type names and builds a registry.
func FromDefinitions(defs []Definition, primaryKey []string) (*ColumnTypes, error) {
	columns := make([]core.Column, 0, len(defs))
	for _, def := range defs {
		kind, err := core.ParseColumnKind(def.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", def.Name, err)
		}
		columns = append(columns, core.Column{Name: def.Name, Kind: kind})
	}
	return NewColumnTypes(columns, primaryKey)
}

// Len returns the number of destination columns.
func (ct *ColumnTypes) Len() int {
	return len(ct.columns)
}

// Columns returns a copy of the destination columns in cache order.
func (ct *ColumnTypes) Columns() []core.Column {
	out := make([]core.Column, len(ct.columns))
	copy(out, ct.columns)
	return out
}

// ColumnNames returns the destination column names in cache order.
func (ct *ColumnTypes) ColumnNames() []string {
	names := make([]string, len(ct.columns))
	for i, col := range ct.columns {
		names[i] = col.Name
	}
	return names
}

// KindAt returns the kind of the column at the 0-based position.
func (ct *ColumnTypes) KindAt(position int) (core.ColumnKind, bool) {
	if position < 0 || position >= len(ct.columns) {
		return core.KindInvalid, false
	}
	return ct.columns[position].Kind, true
}

// KindOf returns the kind of the named column. Lookup is case-insensitive.
func (ct *ColumnTypes) KindOf(name string) (core.ColumnKind, bool) {
	pos, ok := ct.positions[normalizeName(name)]
	if !ok {
		return core.KindInvalid, false
	}
	return ct.columns[pos].Kind, true
}

// PrimaryKeyLen returns the number of declared primary key columns.
func (ct *ColumnTypes) PrimaryKeyLen() int {
	return len(ct.primaryKey)
}

// PrimaryKeyColumn returns the i-th (0-based) primary key column.
func (ct *ColumnTypes) PrimaryKeyColumn(i int) (core.Column, bool) {
	if i < 0 || i >= len(ct.primaryKey) {
		return core.Column{}, false
	}
	return ct.columns[ct.primaryKey[i]], true
}

// PrimaryKey returns the primary key column names in key order.
func (ct *ColumnTypes) PrimaryKey() []string {
	names := make([]string, len(ct.primaryKey))
	for i, pos := range ct.primaryKey {
		names[i] = ct.columns[pos].Name
	}
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
