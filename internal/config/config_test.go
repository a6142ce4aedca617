package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsYAML = `
schema: public
table: accounts
properties:
  driver: postgres
  hosts: db1, db2
  port: "5432"
  database: bank
  username: cache
  query_timeout: 250ms
columns:
  - name: id
    type: INTEGER
  - name: balance
    type: DECIMAL(12,2)
  - name: name
    type: VARCHAR(64)
primary_key: [id]
metrics:
  prometheus:
    enabled: true
health:
  redis:
    enabled: true
    addr: redis:6379
    ttl: 30s
`

func TestConfigManager_LoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte(accountsYAML)))

	cfg := cm.GetConfig()
	assert.Equal(t, "public", cfg.Schema)
	assert.Equal(t, "accounts", cfg.Table)
	assert.Equal(t, []string{"id"}, cfg.PrimaryKey)
	assert.True(t, cfg.Metrics.Prometheus.Enabled)
	assert.Equal(t, "rematerializer", cfg.Metrics.Prometheus.Namespace)
	assert.Equal(t, 30*time.Second, cfg.Health.Redis.TTL)
	assert.Equal(t, "remat:health:", cfg.Health.Redis.KeyPrefix)

	// defaults survive alongside file values
	assert.Equal(t, DefaultConnectTimeout.String(), cfg.Properties[KeyConnectTimeout])

	ct, err := cfg.ColumnTypes()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "balance", "name"}, ct.ColumnNames())

	s, err := cfg.Properties.Settings()
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "db2"}, s.Hosts)
	assert.Equal(t, 250*time.Millisecond, s.QueryTimeout)
}

func TestConfigManager_LoadFromJSON(t *testing.T) {
	data := []byte(`{
		"table": "accounts",
		"properties": {"driver": "sqlite", "database": ":memory:"},
		"columns": [{"name": "id", "type": "BIGINT"}],
		"primary_key": ["id"]
	}`)

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromJSON(data))
	assert.Equal(t, "sqlite", cm.GetConfig().Properties[KeyDriver])
}

func TestConfigManager_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing table",
			yaml:    "columns: [{name: id, type: INT}]\nprimary_key: [id]\n",
			wantErr: "table is required",
		},
		{
			name:    "missing columns",
			yaml:    "table: t\nprimary_key: [id]\n",
			wantErr: "columns must list",
		},
		{
			name:    "missing primary key",
			yaml:    "table: t\ncolumns: [{name: id, type: INT}]\n",
			wantErr: "primary_key must list",
		},
		{
			name:    "unknown type",
			yaml:    "table: t\ncolumns: [{name: id, type: POINT}]\nprimary_key: [id]\n",
			wantErr: "unsupported column type",
		},
		{
			name:    "bad port",
			yaml:    "table: t\ncolumns: [{name: id, type: INT}]\nprimary_key: [id]\nproperties: {port: '70000'}\n",
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "kafka without topic",
			yaml:    "table: t\ncolumns: [{name: id, type: INT}]\nprimary_key: [id]\nmetrics: {kafka: {enabled: true, topic: ''}}\n",
			wantErr: "metrics.kafka.topic is required",
		},
		{
			name:    "redis without addr",
			yaml:    "table: t\ncolumns: [{name: id, type: INT}]\nprimary_key: [id]\nhealth: {redis: {enabled: true, addr: ''}}\n",
			wantErr: "health.redis.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewConfigManager()
			err := cm.LoadFromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigManager_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "remat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(accountsYAML), 0o600))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(path))
	assert.Equal(t, "accounts", cm.GetConfig().Table)

	bad := filepath.Join(dir, "remat.toml")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o600))
	assert.ErrorContains(t, cm.LoadFromFile(bad), "unsupported config file format")

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestConfigManager_LoadFromEnv(t *testing.T) {
	t.Setenv("REMAT_SCHEMA", "public")
	t.Setenv("REMAT_TABLE", "accounts")
	t.Setenv("REMAT_COLUMNS", "id:INTEGER, balance:DECIMAL, name:VARCHAR")
	t.Setenv("REMAT_PRIMARY_KEY", "id")
	t.Setenv("REMAT_DRIVER", "mysql")
	t.Setenv("REMAT_HOSTS", "db1,db2")
	t.Setenv("REMAT_PORT", "3306")
	t.Setenv("REMAT_METRICS_KAFKA_ENABLED", "true")
	t.Setenv("REMAT_METRICS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REMAT_HEALTH_REDIS_DB", "3")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromEnv())

	cfg := cm.GetConfig()
	assert.Equal(t, "accounts", cfg.Table)
	assert.Len(t, cfg.Columns, 3)
	assert.Equal(t, "DECIMAL", cfg.Columns[1].Type)
	assert.Equal(t, "mysql", cfg.Properties[KeyDriver])
	assert.Equal(t, "3306", cfg.Properties[KeyPort])
	assert.True(t, cfg.Metrics.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Metrics.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Health.Redis.DB)
}

func TestConfigManager_LoadFromEnvBadColumns(t *testing.T) {
	t.Setenv("REMAT_TABLE", "accounts")
	t.Setenv("REMAT_COLUMNS", "id")

	cm := NewConfigManager()
	assert.ErrorContains(t, cm.LoadFromEnv(), "name:TYPE")
}
