package core

import (
	"context"
)

// Query is a parameterized single-row SELECT built once per configuration.
type Query struct {
	// Text is the statement in the backing dialect.
	Text string

	// Columns are the selected columns, in result order.
	Columns []string

	// KeyColumns are the primary key columns bound as positional parameters.
	KeyColumns []string
}

// Dialect captures the driver-specific conventions of a backing database.
type Dialect interface {
	// Name identifies the backing driver (e.g. "postgres", "mysql").
	Name() string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// QualifiedTable returns the quoted, schema-qualified table reference.
	QualifiedTable(schema, table string) string

	// Placeholder returns the parameter marker for the 1-based position.
	Placeholder(position int) string

	// BindParam converts a primary key value to the driver's parameter
	// representation for the given logical kind. It must fail rather than
	// silently coerce a value the column cannot represent.
	BindParam(value any, kind ColumnKind) (any, error)

	// NormalizeValue converts vendor-specific result wrappers into the
	// universal representations used by the row mapper.
	NormalizeValue(value any) (any, error)
}

// Connector opens connections to one backing database.
type Connector interface {
	Dialect() Dialect

	// Connect establishes a new live connection.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one live connection to the backing database.
type Conn interface {
	// Ping confirms the connection is usable.
	Ping(ctx context.Context) error

	// Prepare creates a reusable statement for the query.
	Prepare(ctx context.Context, query Query) (Statement, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Statement is a prepared single-row query bound to a live connection.
type Statement interface {
	// QueryRow executes the statement with positional args and returns the
	// driver-native values of the first row. found is false when no row matched.
	QueryRow(ctx context.Context, args ...any) (values []any, found bool, err error)

	// Close releases the statement handle.
	Close() error
}
