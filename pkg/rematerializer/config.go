package rematerializer

import (
	"github.com/rzpsarthak13/rematerializer/internal/config"
)

// Config is the root configuration of a rematerializer: the backing table,
// its connection properties, the cache columns and the observability sinks.
//
// Example YAML:
//
//	schema: public
//	table: accounts
//	properties:
//	  driver: postgres
//	  hosts: db1.internal,db2.internal
//	  port: "5432"
//	  database: bank
//	  username: cache
//	  query_timeout: 250ms
//	columns:
//	  - {name: id, type: INTEGER}
//	  - {name: balance, type: DECIMAL}
//	  - {name: name, type: VARCHAR}
//	primary_key: [id]
//	metrics:
//	  prometheus: {enabled: true}
type Config = config.FileConfig

// Properties are the string connection properties passed to Configure.
// Unknown keys are ignored.
type Properties = config.Properties

// DefaultConfig returns a configuration with sensible defaults.
// Table, Columns and PrimaryKey must still be set.
func DefaultConfig() *Config {
	return config.DefaultFileConfig()
}

// LoadConfig reads and validates a configuration file (.yaml, .yml or .json).
// An empty path loads the configuration from REMAT_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cm := config.NewConfigManager()
	if path == "" {
		if err := cm.LoadFromEnv(); err != nil {
			return nil, err
		}
		return cm.GetConfig(), nil
	}
	if err := cm.LoadFromFile(path); err != nil {
		return nil, err
	}
	return cm.GetConfig(), nil
}
