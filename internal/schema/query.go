package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// BuildSelect builds the single-row lookup statement for a table:
// all destination columns, filtered by equality on every primary key column.
// Quoting and parameter markers follow the dialect.
func BuildSelect(d core.Dialect, schemaName, table string, keyColumns, columns []string) (core.Query, error) {
	if d == nil {
		return core.Query{}, fmt.Errorf("dialect cannot be nil")
	}
	if strings.TrimSpace(table) == "" {
		return core.Query{}, fmt.Errorf("table name cannot be empty")
	}
	if len(columns) == 0 {
		return core.Query{}, fmt.Errorf("at least one column is required")
	}
	if len(keyColumns) == 0 {
		return core.Query{}, fmt.Errorf("at least one primary key column is required")
	}

	selectList := make([]string, len(columns))
	for i, col := range columns {
		selectList[i] = d.QuoteIdent(col)
	}

	predicates := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		predicates[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(col), d.Placeholder(i+1))
	}

	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(selectList, ", "),
		d.QualifiedTable(schemaName, table),
		strings.Join(predicates, " AND "),
	)

	return core.Query{
		Text:       text,
		Columns:    append([]string(nil), columns...),
		KeyColumns: append([]string(nil), keyColumns...),
	}, nil
}
