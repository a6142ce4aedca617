package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// testDialect is a minimal ANSI-style dialect with numbered placeholders.
type testDialect struct {
	normalize func(any) (any, error)
}

func (testDialect) Name() string { return "test" }

func (testDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d testDialect) QualifiedTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (testDialect) Placeholder(position int) string { return fmt.Sprintf(":%d", position) }

func (testDialect) BindParam(value any, kind core.ColumnKind) (any, error) {
	return Coerce(value, kind)
}

func (d testDialect) NormalizeValue(value any) (any, error) {
	if d.normalize != nil {
		return d.normalize(value)
	}
	return value, nil
}

type kindList []core.ColumnKind

func (k kindList) Len() int { return len(k) }

func (k kindList) KindAt(i int) (core.ColumnKind, bool) {
	if i < 0 || i >= len(k) {
		return core.KindInvalid, false
	}
	return k[i], true
}
