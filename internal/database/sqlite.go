package database

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

// SQLiteDialect implements core.Dialect for SQLite.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedTable treats the schema as an attached database name.
func (d SQLiteDialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schemaName) + "." + d.QuoteIdent(table)
}

func (SQLiteDialect) Placeholder(int) string { return "?" }

// BindParam binds decimals as text; NUMERIC column affinity converts them on comparison.
func (SQLiteDialect) BindParam(value any, kind core.ColumnKind) (any, error) {
	v, err := schema.Coerce(value, kind)
	if err != nil {
		return nil, err
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.String(), nil
	}
	return v, nil
}

func (SQLiteDialect) NormalizeValue(value any) (any, error) {
	return value, nil
}

// SQLiteConnectorFactory implements ConnectorFactory for SQLite files.
type SQLiteConnectorFactory struct{}

// Type returns the driver name for this factory.
func (f *SQLiteConnectorFactory) Type() string {
	return "sqlite"
}

// Validate requires a database path or a DSN.
func (f *SQLiteConnectorFactory) Validate(settings config.Settings) error {
	if settings.DSN == "" && settings.Database == "" {
		return fmt.Errorf("database (file path) or dsn is required for SQLite")
	}
	return nil
}

// Create creates a SQLite connector. An in-memory database is private to each connection.
func (f *SQLiteConnectorFactory) Create(settings config.Settings) (core.Connector, error) {
	dsn := settings.DSN
	if dsn == "" {
		dsn = settings.Database
	}
	return &sqlConnector{
		driverName: "sqlite",
		dsns:       []string{dsn},
		dialect:    SQLiteDialect{},
		tag:        "SQLITE",
		logger:     settings.Log(),
	}, nil
}

func init() {
	RegisterFactory(&SQLiteConnectorFactory{})
}
