// Package health publishes rematerializer broken-state transitions so
// external monitors can see which caches are serving from a failed backend.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// Status is the JSON document stored per schema/table.
type Status struct {
	Schema string    `json:"schema"`
	Table  string    `json:"table"`
	Driver string    `json:"driver"`
	Broken bool      `json:"broken"`
	Stage  string    `json:"stage,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

type redisWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher stores the latest status under <prefix><schema>.<table> and
// publishes every transition on <prefix>events. A single background worker
// writes transitions in the order they were observed, so the fetch path never
// waits on Redis and the stored status always ends at the latest transition.
type RedisPublisher struct {
	client    redisWriter
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	queue   []statusWrite
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	pending sync.WaitGroup
}

type statusWrite struct {
	key  string
	data []byte
}

// NewRedisPublisher creates a publisher for the configured Redis instance.
// The connection is established lazily by the client.
func NewRedisPublisher(cfg config.RedisConfig, logger *log.Logger) (*RedisPublisher, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return newRedisPublisher(client, cfg, logger), nil
}

func newRedisPublisher(client redisWriter, cfg config.RedisConfig, logger *log.Logger) *RedisPublisher {
	if logger == nil {
		logger = log.Default()
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &RedisPublisher{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		timeout:   timeout,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Key returns the status key for a schema/table pair.
func (p *RedisPublisher) Key(schema, table string) string {
	return p.keyPrefix + schema + "." + table
}

// Channel returns the pub/sub channel transitions are announced on.
func (p *RedisPublisher) Channel() string {
	return p.keyPrefix + "events"
}

// OnHealthChange implements core.HealthObserver.
func (p *RedisPublisher) OnHealthChange(event core.HealthEvent) {
	status := Status{
		Schema: event.Schema,
		Table:  event.Table,
		Driver: event.Driver,
		Broken: event.Broken,
		Stage:  event.Stage,
		At:     event.At.UTC(),
	}
	if event.Err != nil {
		status.Error = event.Err.Error()
	}

	data, err := json.Marshal(status)
	if err != nil {
		p.logger.Printf("[HEALTH] WARNING: failed to encode status: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Printf("[HEALTH] WARNING: publisher closed, dropping status for %s", p.Key(event.Schema, event.Table))
		return
	}
	p.queue = append(p.queue, statusWrite{key: p.Key(event.Schema, event.Table), data: data})
	p.pending.Add(1)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for range p.wake {
		p.drain()
	}
	p.drain()
}

func (p *RedisPublisher) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		w := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.publish(w.key, w.data)
		p.pending.Done()
	}
}

func (p *RedisPublisher) publish(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		p.logger.Printf("[HEALTH] WARNING: failed to store status %s: %v", key, err)
		return
	}
	if err := p.client.Publish(ctx, p.Channel(), data).Err(); err != nil {
		p.logger.Printf("[HEALTH] WARNING: failed to publish status %s: %v", key, err)
		return
	}
	p.logger.Printf("[HEALTH] Published status %s", key)
}

// Wait blocks until every queued transition has been written.
func (p *RedisPublisher) Wait() {
	p.pending.Wait()
}

// Close writes the queued transitions, stops the worker and closes the client.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.wake)
	}
	p.mu.Unlock()
	<-p.done
	return p.client.Close()
}
