package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/registry"
)

// field is one column of the printed row.
type field struct {
	Column string `json:"column"`
	Type   string `json:"type"`
	Value  any    `json:"value"`
}

// parseKey converts command-line key values to the logical values of the
// primary key columns.
func parseKey(columns *registry.ColumnTypes, args []string) ([]any, error) {
	if len(args) > columns.PrimaryKeyLen() {
		return nil, fmt.Errorf("got %d key values, primary key has %d columns", len(args), columns.PrimaryKeyLen())
	}
	key := make([]any, len(args))
	for i, arg := range args {
		col, _ := columns.PrimaryKeyColumn(i)
		v, err := parseValue(arg, col.Kind)
		if err != nil {
			return nil, fmt.Errorf("key column %s (%s): %w", col.Name, col.Kind, err)
		}
		key[i] = v
	}
	return key, nil
}

func parseValue(s string, kind core.ColumnKind) (any, error) {
	switch kind {
	case core.KindTinyInt, core.KindSmallInt, core.KindInteger, core.KindBigInt:
		return strconv.ParseInt(s, 10, 64)
	case core.KindFloat:
		return strconv.ParseFloat(s, 64)
	case core.KindDecimal:
		return decimal.NewFromString(s)
	case core.KindBoolean:
		return strconv.ParseBool(s)
	case core.KindTimestamp:
		return time.Parse(time.RFC3339Nano, s)
	case core.KindVarchar:
		return s, nil
	case core.KindVarbinary:
		return []byte(s), nil
	case core.KindInvalid:
	}
	return nil, fmt.Errorf("unsupported column kind %s", kind)
}

// renderRow writes the row as an indented JSON array of fields, or null when
// no row matched.
func renderRow(w io.Writer, columns *registry.ColumnTypes, row []any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if row == nil {
		return enc.Encode(nil)
	}
	cols := columns.Columns()
	out := make([]field, len(row))
	for i, v := range row {
		out[i] = field{Column: cols[i].Name, Type: cols[i].Kind.String(), Value: v}
	}
	return enc.Encode(out)
}
