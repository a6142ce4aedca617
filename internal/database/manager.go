package database

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// ManagerOptions tunes a connection manager.
type ManagerOptions struct {
	// ConnectTimeout bounds each connect attempt including the ping. Zero means no bound.
	ConnectTimeout time.Duration

	// ReconnectInterval is the minimum spacing between connect attempts.
	// Zero disables throttling.
	ReconnectInterval time.Duration

	Logger *log.Logger
}

// Manager owns the session with one backing database. The session is either
// disconnected, or connected with at most one prepared statement, which is
// only valid while its connection is live.
type Manager struct {
	connector      core.Connector
	connectTimeout time.Duration
	limiter        *rate.Limiter
	logger         *log.Logger

	mu   sync.Mutex
	conn core.Conn
	stmt core.Statement
	text string
}

// NewManager creates a disconnected manager for the connector.
func NewManager(connector core.Connector, opts ManagerOptions) *Manager {
	m := &Manager{
		connector:      connector,
		connectTimeout: opts.ConnectTimeout,
		logger:         opts.Logger,
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	if opts.ReconnectInterval > 0 {
		m.limiter = rate.NewLimiter(rate.Every(opts.ReconnectInterval), 1)
	}
	return m
}

// Dialect returns the connector's dialect.
func (m *Manager) Dialect() core.Dialect {
	return m.connector.Dialect()
}

// EnsureConnected connects when there is no live connection. It is a no-op
// otherwise. Failures wrap core.ErrConnectivity.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	name := m.connector.Dialect().Name()

	if m.limiter != nil {
		r := m.limiter.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			return fmt.Errorf("%w: reconnect to %s throttled for another %s", core.ErrConnectivity, name, delay.Round(time.Millisecond))
		}
	}

	if m.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.connectTimeout)
		defer cancel()
	}

	conn, err := m.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %w", core.ErrConnectivity, name, err)
	}
	if err := conn.Ping(ctx); err != nil {
		if cerr := conn.Close(); cerr != nil {
			m.logger.Printf("[DB] WARNING: failed to close %s connection after ping failure: %v", name, cerr)
		}
		return fmt.Errorf("%w: ping %s: %w", core.ErrConnectivity, name, err)
	}

	m.conn = conn
	m.logger.Printf("[DB] Connected to %s", name)
	return nil
}

// Statement returns the prepared statement for q, preparing it on first use
// after a connect. A statement prepared for different text is replaced.
func (m *Manager) Statement(ctx context.Context, q core.Query) (core.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil, fmt.Errorf("%w: not connected", core.ErrConnectivity)
	}
	if m.stmt != nil && m.text == q.Text {
		return m.stmt, nil
	}
	m.closeStatementLocked()

	stmt, err := m.conn.Prepare(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare: %w", core.ErrConnectivity, err)
	}
	m.stmt = stmt
	m.text = q.Text
	return stmt, nil
}

// Disconnect drops the prepared statement and the connection. Close errors
// are logged, never returned. Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeStatementLocked()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Printf("[DB] WARNING: failed to close %s connection: %v", m.connector.Dialect().Name(), err)
		}
		m.conn = nil
	}
}

func (m *Manager) closeStatementLocked() {
	if m.stmt == nil {
		return
	}
	if err := m.stmt.Close(); err != nil {
		m.logger.Printf("[DB] WARNING: failed to close prepared statement: %v", err)
	}
	m.stmt = nil
	m.text = ""
}

// IsConnected reports whether a live connection is held.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// HasStatement reports whether a prepared statement is held.
func (m *Manager) HasStatement() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stmt != nil
}
