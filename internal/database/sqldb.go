package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// sqlOpen is overridable in tests.
var sqlOpen = sql.Open

// sqlConnector connects through a database/sql driver. Each candidate DSN is
// tried in order and the first reachable one wins.
type sqlConnector struct {
	driverName string
	dsns       []string
	dialect    core.Dialect
	tag        string
	logger     *log.Logger
}

func (c *sqlConnector) Dialect() core.Dialect {
	return c.dialect
}

// Connect opens a single-connection pool and pins one *sql.Conn, so the
// prepared statement stays on the connection it was prepared on.
func (c *sqlConnector) Connect(ctx context.Context) (core.Conn, error) {
	if len(c.dsns) == 0 {
		return nil, fmt.Errorf("no data source configured")
	}

	var errs []error
	for i, dsn := range c.dsns {
		conn, err := c.open(ctx, dsn)
		if err == nil {
			return conn, nil
		}
		c.logger.Printf("[%s] candidate %d/%d unreachable: %v", c.tag, i+1, len(c.dsns), err)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (c *sqlConnector) open(ctx context.Context, dsn string) (*sqlConn, error) {
	db, err := sqlOpen(c.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &sqlConn{db: db, conn: conn, tag: c.tag, logger: c.logger}, nil
}

// sqlConn wraps a pinned *sql.Conn to implement core.Conn.
type sqlConn struct {
	db     *sql.DB
	conn   *sql.Conn
	tag    string
	logger *log.Logger
	closed bool
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *sqlConn) Prepare(ctx context.Context, q core.Query) (core.Statement, error) {
	stmt, err := c.conn.PrepareContext(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	c.logger.Printf("[%s] Prepared statement: %s", c.tag, q.Text)
	return &sqlStatement{stmt: stmt}, nil
}

func (c *sqlConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(c.conn.Close(), c.db.Close())
}

// sqlStatement wraps *sql.Stmt to implement core.Statement.
type sqlStatement struct {
	stmt *sql.Stmt
}

func (s *sqlStatement) QueryRow(ctx context.Context, args ...any) ([]any, bool, error) {
	rows, err := s.stmt.QueryContext(ctx, args...)
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

	cols, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read columns: %w", err)
	}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, false, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, false, fmt.Errorf("error closing result: %w", err)
	}
	return values, true, nil
}

func (s *sqlStatement) Close() error {
	return s.stmt.Close()
}
