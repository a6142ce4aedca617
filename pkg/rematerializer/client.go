// Package rematerializer is the public entry point for loading single rows
// from a backing database into an in-memory cache.
//
// Typical usage:
//
//	cfg, _ := rematerializer.LoadConfig("remat.yaml")
//	client, _ := rematerializer.Open(ctx, cfg)
//	defer client.Close()
//
//	load := client.Loader()
//	row, err := load(ctx, []any{42}) // nil, nil when no row matches
package rematerializer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/health"
	"github.com/rzpsarthak13/rematerializer/internal/metrics"
	"github.com/rzpsarthak13/rematerializer/internal/remat"
)

// Error sentinels for classifying fetch failures with errors.Is.
var (
	ErrConfiguration = core.ErrConfiguration
	ErrNotConfigured = core.ErrNotConfigured
	ErrConnectivity  = core.ErrConnectivity
	ErrBinding       = core.ErrBinding
	ErrMapping       = core.ErrMapping
)

// FetchError reports the schema, table and stage of a failed fetch.
type FetchError = remat.FetchError

// HealthEvent is delivered to health observers on broken-state transitions.
type HealthEvent = core.HealthEvent

// Loader loads the row for a full primary key. It returns nil, nil when no row matches.
type Loader func(ctx context.Context, key []any) ([]any, error)

// Client fetches rows from one configured backing table.
type Client interface {
	// Fetch returns the row matching the first min(len(pk), pkCount) key
	// values in cache column order, or nil, nil when no row matches.
	// Failures are returned as *FetchError and mark the client broken.
	Fetch(ctx context.Context, pk []any, pkCount int) ([]any, error)

	// Loader returns a Fetch bound to the full primary key length.
	Loader() Loader

	// Configure re-points the client at another table or connection.
	// Failures are absorbed and reported through IsBroken and LastError.
	Configure(ctx context.Context, schema, table string, props Properties)

	// IsBroken reports whether a failure occurred since the last successful Configure.
	IsBroken() bool

	// LastError returns the most recent failure, or nil.
	LastError() error

	// StatementText returns the SELECT issued against the backing table.
	StatementText() string

	// Disconnect drops the backing session. The next Fetch reconnects.
	Disconnect()

	// Close releases the session and the metrics and health sinks.
	Close() error
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	registerer prometheus.Registerer
	logger     *log.Logger
	observers  []core.HealthObserver
}

// WithRegisterer sets the Prometheus registerer for the latency histogram.
// The default is prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *openOptions) {
		o.registerer = reg
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *log.Logger) Option {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// WithHealthObserver adds a callback for broken-state transitions. It must not block.
func WithHealthObserver(fn func(HealthEvent)) Option {
	return func(o *openOptions) {
		if fn != nil {
			o.observers = append(o.observers, core.HealthObserverFunc(fn))
		}
	}
}

type client struct {
	remat   *remat.Rematerializer
	closers []io.Closer
}

// Open builds the column registry and the configured sinks, then configures
// the client against cfg.Schema and cfg.Table. A backing database that is
// unreachable does not fail Open: the client starts broken and reconnects on
// the first Fetch. Errors are returned only for an unusable configuration.
func Open(ctx context.Context, cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	o := openOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	columns, err := cfg.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	c := &client{}
	var reporters metrics.Multi

	if cfg.Metrics.Prometheus.Enabled {
		p, err := metrics.NewPrometheusReporter(o.registerer, cfg.Metrics.Prometheus.Namespace, cfg.Metrics.Prometheus.Buckets)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, p)
	}

	if kc := cfg.Metrics.Kafka; kc.Enabled {
		k, err := metrics.NewKafkaReporter(metrics.KafkaReporterConfig{
			Brokers:      kc.Brokers,
			Topic:        kc.Topic,
			BatchSize:    kc.BatchSize,
			BatchTimeout: kc.BatchTimeout,
			WriteTimeout: kc.WriteTimeout,
			RequiredAcks: kc.RequiredAcks,
			Logger:       o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka latency stream: %w", err)
		}
		reporters = append(reporters, k)
		c.closers = append(c.closers, k)
	}

	ropts := []remat.Option{
		remat.WithLogger(o.logger),
		remat.WithLatencyReporter(metrics.NewSampler(reporters)),
	}

	if cfg.Health.Redis.Enabled {
		pub, err := health.NewRedisPublisher(cfg.Health.Redis, o.logger)
		if err != nil {
			c.closeSinks()
			return nil, fmt.Errorf("failed to create redis health publisher: %w", err)
		}
		ropts = append(ropts, remat.WithHealthObserver(pub))
		c.closers = append(c.closers, pub)
	}
	for _, obs := range o.observers {
		ropts = append(ropts, remat.WithHealthObserver(obs))
	}

	c.remat = remat.New(columns, ropts...)
	c.remat.Configure(ctx, cfg.Schema, cfg.Table, cfg.Properties)
	return c, nil
}

func (c *client) Fetch(ctx context.Context, pk []any, pkCount int) ([]any, error) {
	return c.remat.Fetch(ctx, pk, pkCount)
}

func (c *client) Loader() Loader {
	n := c.remat.Columns().PrimaryKeyLen()
	return func(ctx context.Context, key []any) ([]any, error) {
		return c.remat.Fetch(ctx, key, n)
	}
}

func (c *client) Configure(ctx context.Context, schema, table string, props Properties) {
	c.remat.Configure(ctx, schema, table, props)
}

func (c *client) IsBroken() bool {
	return c.remat.IsBroken()
}

func (c *client) LastError() error {
	return c.remat.LastError()
}

func (c *client) StatementText() string {
	return c.remat.StatementText()
}

func (c *client) Disconnect() {
	c.remat.Disconnect()
}

func (c *client) Close() error {
	err := c.remat.Close()
	return errors.Join(err, c.closeSinks())
}

func (c *client) closeSinks() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
