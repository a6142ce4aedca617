package core

import (
	"fmt"
	"strings"
)

// ColumnKind is the logical datatype of a cache column.
// The set is closed; switches over it are expected to be exhaustive.
type ColumnKind int

const (
	// KindInvalid is the zero value and never a valid column kind.
	KindInvalid ColumnKind = iota
	KindTinyInt
	KindSmallInt
	KindInteger
	KindBigInt
	KindFloat
	KindDecimal
	KindVarchar
	KindVarbinary
	KindTimestamp
	KindBoolean
)

var kindNames = map[ColumnKind]string{
	KindTinyInt:   "TINYINT",
	KindSmallInt:  "SMALLINT",
	KindInteger:   "INTEGER",
	KindBigInt:    "BIGINT",
	KindFloat:     "FLOAT",
	KindDecimal:   "DECIMAL",
	KindVarchar:   "VARCHAR",
	KindVarbinary: "VARBINARY",
	KindTimestamp: "TIMESTAMP",
	KindBoolean:   "BOOLEAN",
}

// kindAliases maps accepted type spellings onto a kind.
var kindAliases = map[string]ColumnKind{
	"TINYINT":          KindTinyInt,
	"SMALLINT":         KindSmallInt,
	"INT":              KindInteger,
	"INTEGER":          KindInteger,
	"BIGINT":           KindBigInt,
	"FLOAT":            KindFloat,
	"DOUBLE":           KindFloat,
	"DOUBLE PRECISION": KindFloat,
	"REAL":             KindFloat,
	"DECIMAL":          KindDecimal,
	"NUMERIC":          KindDecimal,
	"VARCHAR":          KindVarchar,
	"CHAR":             KindVarchar,
	"TEXT":             KindVarchar,
	"STRING":           KindVarchar,
	"VARBINARY":        KindVarbinary,
	"BINARY":           KindVarbinary,
	"BLOB":             KindVarbinary,
	"BYTEA":            KindVarbinary,
	"TIMESTAMP":        KindTimestamp,
	"DATETIME":         KindTimestamp,
	"DATE":             KindTimestamp,
	"BOOLEAN":          KindBoolean,
	"BOOL":             KindBoolean,
}

// String returns the canonical type name of the kind.
func (k ColumnKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ColumnKind(%d)", int(k))
}

// IsInteger reports whether the kind is one of the fixed-width integer kinds.
func (k ColumnKind) IsInteger() bool {
	switch k {
	case KindTinyInt, KindSmallInt, KindInteger, KindBigInt:
		return true
	default:
		return false
	}
}

// ParseColumnKind converts a type name such as "INTEGER" or "VARCHAR(64)" to a kind.
// Size and precision suffixes are ignored.
func ParseColumnKind(typeName string) (ColumnKind, error) {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	if idx := strings.Index(name, "("); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	kind, ok := kindAliases[name]
	if !ok {
		return KindInvalid, fmt.Errorf("unsupported column type %q", typeName)
	}
	return kind, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k ColumnKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("invalid column kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ColumnKind) UnmarshalText(text []byte) error {
	kind, err := ParseColumnKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Column is a single destination column of the cache schema.
type Column struct {
	// Name is the column name in the backing table.
	Name string `yaml:"name" json:"name"`

	// Kind is the logical datatype the cache expects.
	Kind ColumnKind `yaml:"type" json:"type"`
}
