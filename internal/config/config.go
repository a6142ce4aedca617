package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/rematerializer/internal/registry"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "REMAT_"

// FileConfig is the full configuration of one rematerializer deployment:
// the backing table, its connection properties, the cache columns and the
// optional observability sinks.
type FileConfig struct {
	Schema     string                `yaml:"schema" json:"schema"`
	Table      string                `yaml:"table" json:"table"`
	Properties Properties            `yaml:"properties" json:"properties"`
	Columns    []registry.Definition `yaml:"columns" json:"columns"`
	PrimaryKey []string              `yaml:"primary_key" json:"primary_key"`
	Metrics    MetricsConfig         `yaml:"metrics" json:"metrics"`
	Health     HealthConfig          `yaml:"health" json:"health"`
}

// MetricsConfig selects the latency sinks.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus" json:"prometheus"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
}

// PrometheusConfig configures the latency histogram.
type PrometheusConfig struct {
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	Namespace string    `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Buckets   []float64 `yaml:"buckets,omitempty" json:"buckets,omitempty"`
}

// KafkaConfig configures the asynchronous latency event stream.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	RequiredAcks int           `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
}

// HealthConfig selects where broken-state transitions are published.
type HealthConfig struct {
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the Redis health publisher.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Addr        string        `yaml:"addr" json:"addr"`
	Password    string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB          int           `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix   string        `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	TTL         time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
}

// ColumnTypes builds the column type registry described by the configuration.
func (c *FileConfig) ColumnTypes() (*registry.ColumnTypes, error) {
	return registry.FromDefinitions(c.Columns, c.PrimaryKey)
}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *FileConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultFileConfig(),
	}
}

// DefaultFileConfig returns a configuration with sensible defaults.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Properties: Properties{
			KeyDriver:         DefaultDriver,
			KeyHosts:          "localhost",
			KeyConnectTimeout: DefaultConnectTimeout.String(),
		},
		Metrics: MetricsConfig{
			Prometheus: PrometheusConfig{
				Namespace: "rematerializer",
			},
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "rematerializer-latency",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
			},
		},
		Health: HealthConfig{
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				KeyPrefix:   "remat:health:",
				TTL:         5 * time.Minute,
				DialTimeout: 5 * time.Second,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultFileConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultFileConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern REMAT_<KEY>. Examples:
//   - REMAT_SCHEMA=public
//   - REMAT_TABLE=accounts
//   - REMAT_COLUMNS=id:INTEGER,balance:DECIMAL,name:VARCHAR
//   - REMAT_PRIMARY_KEY=id
//   - REMAT_DRIVER=postgres, REMAT_HOSTS=db1,db2, REMAT_PORT=5432 (any property key)
//   - REMAT_METRICS_PROMETHEUS_ENABLED=true
//   - REMAT_METRICS_KAFKA_BROKERS=localhost:9092
//   - REMAT_HEALTH_REDIS_ADDR=localhost:6379
func (cm *ConfigManager) LoadFromEnv() error {
	config := DefaultFileConfig()

	if val := os.Getenv(EnvPrefix + "SCHEMA"); val != "" {
		config.Schema = val
	}
	if val := os.Getenv(EnvPrefix + "TABLE"); val != "" {
		config.Table = val
	}
	if val := os.Getenv(EnvPrefix + "COLUMNS"); val != "" {
		defs, err := parseColumnList(val)
		if err != nil {
			return fmt.Errorf("invalid %sCOLUMNS: %w", EnvPrefix, err)
		}
		config.Columns = defs
	}
	if val := os.Getenv(EnvPrefix + "PRIMARY_KEY"); val != "" {
		config.PrimaryKey = splitList(val)
	}

	// Connection properties
	for _, key := range Keys {
		if val, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key)); ok {
			config.Properties[key] = val
		}
	}

	// Metrics configuration
	if val := os.Getenv(EnvPrefix + "METRICS_PROMETHEUS_ENABLED"); val != "" {
		config.Metrics.Prometheus.Enabled = parseBool(val)
	}
	if val := os.Getenv(EnvPrefix + "METRICS_PROMETHEUS_NAMESPACE"); val != "" {
		config.Metrics.Prometheus.Namespace = val
	}
	if val := os.Getenv(EnvPrefix + "METRICS_KAFKA_ENABLED"); val != "" {
		config.Metrics.Kafka.Enabled = parseBool(val)
	}
	if val := os.Getenv(EnvPrefix + "METRICS_KAFKA_BROKERS"); val != "" {
		config.Metrics.Kafka.Brokers = splitList(val)
	}
	if val := os.Getenv(EnvPrefix + "METRICS_KAFKA_TOPIC"); val != "" {
		config.Metrics.Kafka.Topic = val
	}
	if val := os.Getenv(EnvPrefix + "METRICS_KAFKA_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Metrics.Kafka.BatchSize = n
		}
	}

	// Health configuration
	if val := os.Getenv(EnvPrefix + "HEALTH_REDIS_ENABLED"); val != "" {
		config.Health.Redis.Enabled = parseBool(val)
	}
	if val := os.Getenv(EnvPrefix + "HEALTH_REDIS_ADDR"); val != "" {
		config.Health.Redis.Addr = val
	}
	if val := os.Getenv(EnvPrefix + "HEALTH_REDIS_PASSWORD"); val != "" {
		config.Health.Redis.Password = val
	}
	if val := os.Getenv(EnvPrefix + "HEALTH_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			config.Health.Redis.DB = db
		}
	}
	if val := os.Getenv(EnvPrefix + "HEALTH_REDIS_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.Health.Redis.TTL = ttl
		}
	}

	return cm.apply(config)
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *FileConfig {
	return cm.config
}

func (cm *ConfigManager) apply(config *FileConfig) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// validateConfig validates the configuration and returns an error if invalid.
// Driver-specific property checks happen when the connector is created.
func validateConfig(config *FileConfig) error {
	if strings.TrimSpace(config.Table) == "" {
		return fmt.Errorf("table is required")
	}
	if len(config.Columns) == 0 {
		return fmt.Errorf("columns must list at least one column")
	}
	if len(config.PrimaryKey) == 0 {
		return fmt.Errorf("primary_key must list at least one column")
	}
	if _, err := config.ColumnTypes(); err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	if _, err := config.Properties.Settings(); err != nil {
		return fmt.Errorf("properties: %w", err)
	}

	if config.Metrics.Kafka.Enabled {
		if len(config.Metrics.Kafka.Brokers) == 0 {
			return fmt.Errorf("metrics.kafka.brokers is required when kafka is enabled")
		}
		if config.Metrics.Kafka.Topic == "" {
			return fmt.Errorf("metrics.kafka.topic is required when kafka is enabled")
		}
		if config.Metrics.Kafka.BatchSize < 0 {
			return fmt.Errorf("metrics.kafka.batch_size must be non-negative")
		}
	}

	if config.Health.Redis.Enabled {
		if config.Health.Redis.Addr == "" {
			return fmt.Errorf("health.redis.addr is required when redis is enabled")
		}
		if config.Health.Redis.DB < 0 {
			return fmt.Errorf("health.redis.db must be non-negative")
		}
		if config.Health.Redis.TTL < 0 {
			return fmt.Errorf("health.redis.ttl must be non-negative")
		}
	}

	return nil
}

// parseColumnList parses "name:TYPE,name:TYPE" column lists.
func parseColumnList(val string) ([]registry.Definition, error) {
	var defs []registry.Definition
	for _, item := range splitList(val) {
		name, typ, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(typ) == "" {
			return nil, fmt.Errorf("column %q must be written as name:TYPE", item)
		}
		defs = append(defs, registry.Definition{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)})
	}
	return defs, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(val string) bool {
	return val == "true" || val == "1"
}
