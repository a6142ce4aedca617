// Package remat fetches single rows from a backing database on behalf of an
// in-memory cache. A Rematerializer owns one session with the database and
// self-heals after failures by reconnecting on the next call.
package remat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/database"
	"github.com/rzpsarthak13/rematerializer/internal/metrics"
	"github.com/rzpsarthak13/rematerializer/internal/registry"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

// DefaultSamplePolicy reports every fetch.
const DefaultSamplePolicy = 100

// Option configures a Rematerializer.
type Option func(*Rematerializer)

// WithLatencyReporter sets the sink for query latency.
func WithLatencyReporter(reporter core.LatencyReporter) Option {
	return func(r *Rematerializer) {
		if reporter != nil {
			r.reporter = reporter
		}
	}
}

// WithHealthObserver adds an observer of broken-state transitions.
func WithHealthObserver(observer core.HealthObserver) Option {
	return func(r *Rematerializer) {
		if observer != nil {
			r.observers = append(r.observers, observer)
		}
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(r *Rematerializer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConnectorFactory replaces the driver registry lookup used by Configure.
func WithConnectorFactory(factory func(config.Settings) (core.Connector, error)) Option {
	return func(r *Rematerializer) {
		if factory != nil {
			r.newConnector = factory
		}
	}
}

// WithSamplePolicy sets the percentage of fetches whose latency is reported.
func WithSamplePolicy(percent int) Option {
	return func(r *Rematerializer) {
		r.samplePolicy = percent
	}
}

// Rematerializer fetches one row by primary key from a configured table.
// Configure, Fetch and Disconnect are serialized by an internal lock; the
// health accessors never block.
type Rematerializer struct {
	columns      *registry.ColumnTypes
	reporter     core.LatencyReporter
	observers    []core.HealthObserver
	logger       *log.Logger
	newConnector func(config.Settings) (core.Connector, error)
	samplePolicy int

	mu         sync.Mutex
	configured bool
	schema     string
	table      string
	settings   config.Settings
	manager    *database.Manager
	mapper     *schema.Mapper
	query      core.Query
	metricName string

	broken  atomic.Bool
	lastErr atomic.Pointer[FetchError]
}

// New creates an unconfigured rematerializer for the cache columns.
func New(columns *registry.ColumnTypes, opts ...Option) *Rematerializer {
	r := &Rematerializer{
		columns:      columns,
		reporter:     metrics.Noop{},
		logger:       log.Default(),
		newConnector: database.Create,
		samplePolicy: DefaultSamplePolicy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure points the rematerializer at schema.table using props. Any
// previous session is torn down. Failures are absorbed: they mark the
// rematerializer broken and are available from LastError. When only the
// connect fails, the configuration is kept and the next Fetch reconnects.
func (r *Rematerializer) Configure(ctx context.Context, schemaName, table string, props config.Properties) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardownLocked()
	r.schema = schemaName
	r.table = table
	r.settings = config.Settings{}

	settings, err := props.Settings()
	if err != nil {
		r.failLocked("configure", StageConfigure, fmt.Errorf("%w: %w", core.ErrConfiguration, err))
		return
	}
	settings.Logger = r.logger
	r.settings = settings
	if r.columns == nil {
		r.failLocked("configure", StageConfigure, fmt.Errorf("%w: no column types", core.ErrConfiguration))
		return
	}

	connector, err := r.newConnector(settings)
	if err != nil {
		if !errors.Is(err, core.ErrConfiguration) {
			err = fmt.Errorf("%w: %w", core.ErrConfiguration, err)
		}
		r.failLocked("configure", StageConfigure, err)
		return
	}

	dialect := connector.Dialect()
	query, err := schema.BuildSelect(dialect, schemaName, table, r.columns.PrimaryKey(), r.columns.ColumnNames())
	if err != nil {
		r.failLocked("configure", StageConfigure, fmt.Errorf("%w: %w", core.ErrConfiguration, err))
		return
	}

	r.manager = database.NewManager(connector, database.ManagerOptions{
		ConnectTimeout:    settings.ConnectTimeout,
		ReconnectInterval: settings.ReconnectInterval,
		Logger:            r.logger,
	})
	r.mapper = schema.NewMapper(dialect)
	r.query = query
	r.metricName = dialect.Name() + "_query_ms"
	r.configured = true

	if err := r.manager.EnsureConnected(ctx); err != nil {
		r.failLocked("configure", StageConnect, err)
		return
	}

	r.logger.Printf("[REMAT] Configured %s (%s)", qualified(schemaName, table), settings)
	r.recoverLocked()
}

// Fetch returns the row whose primary key matches the first
// min(len(pk), pkCount) key values, in column order. It returns nil, nil when
// no row matches. Any failure marks the rematerializer broken, drops the
// session and is returned as a *FetchError.
func (r *Rematerializer) Fetch(ctx context.Context, pk []any, pkCount int) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.configured {
		err := fmt.Errorf("%w: %w", core.ErrConfiguration, core.ErrNotConfigured)
		return nil, r.failLocked("fetch", StageConnect, err)
	}

	if r.settings.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.QueryTimeout)
		defer cancel()
	}

	row, stage, err := r.fetchLocked(ctx, pk, pkCount)
	if err != nil {
		fe := r.failLocked("fetch", stage, err)
		r.manager.Disconnect()
		return nil, fe
	}
	return row, nil
}

func (r *Rematerializer) fetchLocked(ctx context.Context, pk []any, pkCount int) ([]any, string, error) {
	if err := r.manager.EnsureConnected(ctx); err != nil {
		return nil, StageConnect, err
	}

	stmt, err := r.manager.Statement(ctx, r.query)
	if err != nil {
		return nil, StagePrepare, err
	}

	n := min(len(pk), pkCount)
	if n < 0 {
		n = 0
	}
	dialect := r.manager.Dialect()
	args := make([]any, n)
	for i := 0; i < n; i++ {
		col, ok := r.columns.PrimaryKeyColumn(i)
		if !ok {
			return nil, StageBind, fmt.Errorf("%w: key value %d has no primary key column (key has %d columns)", core.ErrBinding, i, r.columns.PrimaryKeyLen())
		}
		v, err := dialect.BindParam(pk[i], col.Kind)
		if err != nil {
			return nil, StageBind, fmt.Errorf("%w: column %s (%s): %w", core.ErrBinding, col.Name, col.Kind, err)
		}
		args[i] = v
	}

	start := time.Now()
	values, found, err := stmt.QueryRow(ctx, args...)
	if err != nil {
		if want := len(r.query.KeyColumns); n < want {
			return nil, StageExecute, fmt.Errorf("%w: %d of %d key values bound: %w: %w", core.ErrBinding, n, want, core.ErrConnectivity, err)
		}
		return nil, StageExecute, fmt.Errorf("%w: %w", core.ErrConnectivity, err)
	}
	r.reporter.ReportLatency(r.metricName, start, qualified(r.schema, r.table), r.samplePolicy)

	if !found {
		return nil, "", nil
	}

	row, err := r.mapper.Map(values, r.columns)
	if err != nil {
		return nil, StageMap, fmt.Errorf("%w: %w", core.ErrMapping, err)
	}
	return row, "", nil
}

// failLocked records a failure, logs it with its stage and notifies
// observers when the rematerializer was healthy.
func (r *Rematerializer) failLocked(op, stage string, err error) *FetchError {
	fe := &FetchError{Schema: r.schema, Table: r.table, Stage: stage, Err: err}
	r.lastErr.Store(fe)
	r.logger.Printf("[REMAT] %s stage=%s schema=%s table=%s: %v", op, stage, r.schema, r.table, err)

	if !r.broken.Swap(true) {
		r.notify(core.HealthEvent{
			Schema: r.schema, Table: r.table, Driver: r.settings.Driver,
			Broken: true, Stage: stage, Err: err, At: time.Now(),
		})
	}
	return fe
}

func (r *Rematerializer) recoverLocked() {
	r.lastErr.Store(nil)
	if r.broken.Swap(false) {
		r.notify(core.HealthEvent{
			Schema: r.schema, Table: r.table, Driver: r.settings.Driver,
			Broken: false, At: time.Now(),
		})
	}
}

func (r *Rematerializer) notify(event core.HealthEvent) {
	for _, o := range r.observers {
		o.OnHealthChange(event)
	}
}

func (r *Rematerializer) teardownLocked() {
	if r.manager != nil {
		r.manager.Disconnect()
	}
	r.manager = nil
	r.mapper = nil
	r.query = core.Query{}
	r.configured = false
}

// Disconnect drops the session. The next Fetch reconnects.
func (r *Rematerializer) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manager != nil {
		r.manager.Disconnect()
	}
}

// Close drops the session and the configuration. Fetch fails until the next Configure.
func (r *Rematerializer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
	return nil
}

// IsBroken reports whether a failure occurred since the last successful Configure.
func (r *Rematerializer) IsBroken() bool {
	return r.broken.Load()
}

// LastError returns the most recent failure, or nil after a successful Configure.
func (r *Rematerializer) LastError() error {
	if fe := r.lastErr.Load(); fe != nil {
		return fe
	}
	return nil
}

// IsConnected reports whether a live connection is held.
func (r *Rematerializer) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manager != nil && r.manager.IsConnected()
}

// IsPrepared reports whether a prepared statement is held.
func (r *Rematerializer) IsPrepared() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manager != nil && r.manager.HasStatement()
}

// StatementText returns the SELECT built by the last Configure.
func (r *Rematerializer) StatementText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query.Text
}

// Columns returns the column type registry.
func (r *Rematerializer) Columns() *registry.ColumnTypes {
	return r.columns
}
