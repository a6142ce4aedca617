package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

const (
	postgresDefaultPort = 5432

	// postgresStatementName names the server-side prepared statement.
	postgresStatementName = "remat_fetch"
)

// PostgresDialect implements core.Dialect for PostgreSQL.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (PostgresDialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schemaName, table}.Sanitize()
}

func (PostgresDialect) Placeholder(position int) string {
	return "$" + strconv.Itoa(position)
}

// BindParam binds decimals as exact numerics and widens TINYINT to int2.
func (PostgresDialect) BindParam(value any, kind core.ColumnKind) (any, error) {
	v, err := schema.Coerce(value, kind)
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: b.Coefficient(), Exp: b.Exponent(), Valid: true}, nil
	case int8:
		return int16(b), nil
	}
	return v, nil
}

// NormalizeValue converts pgtype wrappers to decimals and times.
func (PostgresDialect) NormalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case pgtype.Numeric:
		return numericToDecimal(v)
	case pgtype.Timestamp:
		if !v.Valid {
			return nil, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return nil, fmt.Errorf("infinite timestamp cannot be represented")
		}
		return v.Time, nil
	case pgtype.Timestamptz:
		if !v.Valid {
			return nil, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return nil, fmt.Errorf("infinite timestamp cannot be represented")
		}
		return v.Time, nil
	case pgtype.Date:
		if !v.Valid {
			return nil, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return nil, fmt.Errorf("infinite date cannot be represented")
		}
		return v.Time, nil
	case pgtype.InfinityModifier:
		return nil, fmt.Errorf("infinite value cannot be represented")
	case pgtype.Float8:
		if !v.Valid {
			return nil, nil
		}
		return v.Float64, nil
	}
	return value, nil
}

func numericToDecimal(n pgtype.Numeric) (any, error) {
	if !n.Valid {
		return nil, nil
	}
	if n.NaN {
		return nil, fmt.Errorf("NaN numeric cannot be represented as DECIMAL")
	}
	if n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("infinite numeric cannot be represented as DECIMAL")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// PostgresConnector dials PostgreSQL with the native pgx connection, trying
// each configured host in order.
type PostgresConnector struct {
	connStrings []string
	logger      *log.Logger
}

func (c *PostgresConnector) Dialect() core.Dialect {
	return PostgresDialect{}
}

func (c *PostgresConnector) Connect(ctx context.Context) (core.Conn, error) {
	var errs []error
	for i, connString := range c.connStrings {
		conn, err := pgx.Connect(ctx, connString)
		if err == nil {
			return &postgresConn{conn: conn, logger: c.logger}, nil
		}
		c.logger.Printf("[POSTGRES] candidate %d/%d unreachable: %v", i+1, len(c.connStrings), err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no hosts configured")
	}
	return nil, errors.Join(errs...)
}

type postgresConn struct {
	conn   *pgx.Conn
	logger *log.Logger
}

func (c *postgresConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *postgresConn) Prepare(ctx context.Context, q core.Query) (core.Statement, error) {
	if _, err := c.conn.Prepare(ctx, postgresStatementName, q.Text); err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	c.logger.Printf("[POSTGRES] Prepared statement %s: %s", postgresStatementName, q.Text)
	return &postgresStatement{conn: c.conn, name: postgresStatementName}, nil
}

func (c *postgresConn) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Close(ctx)
}

type postgresStatement struct {
	conn *pgx.Conn
	name string
}

func (s *postgresStatement) QueryRow(ctx context.Context, args ...any) ([]any, bool, error) {
	rows, err := s.conn.Query(ctx, s.name, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("error reading result: %w", err)
		}
		return nil, false, nil
	}
	values, err := rows.Values()
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode row: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error reading result: %w", err)
	}
	return values, true, nil
}

func (s *postgresStatement) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Deallocate(ctx, s.name)
}

// PostgresConnectorFactory implements ConnectorFactory for PostgreSQL.
type PostgresConnectorFactory struct{}

// Type returns the driver name for this factory.
func (f *PostgresConnectorFactory) Type() string {
	return "postgres"
}

// Validate validates the PostgreSQL-specific settings.
func (f *PostgresConnectorFactory) Validate(settings config.Settings) error {
	if settings.DSN != "" {
		if _, err := pgx.ParseConfig(settings.DSN); err != nil {
			return fmt.Errorf("dsn: %w", err)
		}
		return nil
	}
	if len(settings.Hosts) == 0 {
		return fmt.Errorf("hosts is required for PostgreSQL")
	}
	if settings.Database == "" {
		return fmt.Errorf("database is required for PostgreSQL")
	}
	if settings.Username == "" {
		return fmt.Errorf("username is required for PostgreSQL")
	}
	return nil
}

// Create creates a PostgreSQL connector with one connection string per host.
func (f *PostgresConnectorFactory) Create(settings config.Settings) (core.Connector, error) {
	if settings.DSN != "" {
		return &PostgresConnector{connStrings: []string{settings.DSN}, logger: settings.Log()}, nil
	}
	var connStrings []string
	for _, addr := range settings.HostPorts(postgresDefaultPort) {
		connStrings = append(connStrings, postgresURL(settings, addr))
	}
	return &PostgresConnector{connStrings: connStrings, logger: settings.Log()}, nil
}

func postgresURL(settings config.Settings, addr string) string {
	q := url.Values{}
	if settings.SSLMode != "" {
		q.Set("sslmode", settings.SSLMode)
	}
	if settings.ConnectTimeout > 0 {
		secs := int(math.Ceil(settings.ConnectTimeout.Seconds()))
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	if settings.QueryTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(settings.QueryTimeout.Milliseconds(), 10))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(settings.Username, settings.Password),
		Host:     addr,
		Path:     "/" + settings.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func init() {
	RegisterFactory(&PostgresConnectorFactory{})
}
