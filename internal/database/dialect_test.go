package database

import (
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

func TestDialects_BuildSelect(t *testing.T) {
	tests := []struct {
		dialect core.Dialect
		want    string
	}{
		{MySQLDialect{}, "SELECT `id`, `name` FROM `bank`.`accounts` WHERE `id` = ? AND `name` = ?"},
		{PostgresDialect{}, `SELECT "id", "name" FROM "bank"."accounts" WHERE "id" = $1 AND "name" = $2`},
		{SQLiteDialect{}, `SELECT "id", "name" FROM "bank"."accounts" WHERE "id" = ? AND "name" = ?`},
		{DynamoDBDialect{}, `SELECT "id", "name" FROM "accounts" WHERE "id" = ? AND "name" = ?`},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			q, err := schema.BuildSelect(tt.dialect, "bank", "accounts", []string{"id", "name"}, []string{"id", "name"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Text)
		})
	}
}

func TestDialects_QuoteEscaping(t *testing.T) {
	assert.Equal(t, "`a``b`", MySQLDialect{}.QuoteIdent("a`b"))
	assert.Equal(t, `"a""b"`, PostgresDialect{}.QuoteIdent(`a"b`))
	assert.Equal(t, `"a""b"`, SQLiteDialect{}.QuoteIdent(`a"b`))
}

func TestMySQLDialect_BindAndNormalize(t *testing.T) {
	d := MySQLDialect{}

	v, err := d.BindParam(decimal.RequireFromString("100.50"), core.KindDecimal)
	require.NoError(t, err)
	assert.Equal(t, "100.5", v)

	v, err = d.BindParam(42, core.KindInteger)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	_, err = d.BindParam(1.5, core.KindInteger)
	assert.Error(t, err)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err = d.NormalizeValue(mysql.NullTime{Time: at, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, at, v)

	v, err = d.NormalizeValue(mysql.NullTime{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPostgresDialect_BindAndNormalize(t *testing.T) {
	d := PostgresDialect{}

	v, err := d.BindParam("123.45", core.KindDecimal)
	require.NoError(t, err)
	n, ok := v.(pgtype.Numeric)
	require.True(t, ok)
	assert.True(t, n.Valid)
	assert.Equal(t, int64(12345), n.Int.Int64())
	assert.Equal(t, int32(-2), n.Exp)

	v, err = d.BindParam(int8(7), core.KindTinyInt)
	require.NoError(t, err)
	assert.Equal(t, int16(7), v)

	v, err = d.NormalizeValue(pgtype.Numeric{Int: big.NewInt(1230), Exp: -1, Valid: true})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("123.0").Equal(v.(decimal.Decimal)))

	v, err = d.NormalizeValue(pgtype.Numeric{})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = d.NormalizeValue(pgtype.Numeric{NaN: true, Valid: true})
	assert.Error(t, err)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	v, err = d.NormalizeValue(pgtype.Timestamptz{Time: at, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, at, v)

	_, err = d.NormalizeValue(pgtype.Timestamp{Valid: true, InfinityModifier: pgtype.Infinity})
	assert.Error(t, err)

	v, err = d.NormalizeValue("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestPostgresDialect_NumericNarrowsThroughMapper(t *testing.T) {
	m := schema.NewMapper(PostgresDialect{})
	v, err := m.MapValue(pgtype.Numeric{Int: big.NewInt(1230), Exp: -1, Valid: true}, core.KindInteger)
	require.NoError(t, err)
	assert.Equal(t, int32(123), v)
}

func TestDynamoDBDialect_BindAndNormalize(t *testing.T) {
	d := DynamoDBDialect{}

	v, err := d.BindParam(42, core.KindBigInt)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "42"}, v)

	v, err = d.BindParam("alice", core.KindVarchar)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "alice"}, v)

	v, err = d.NormalizeValue(&types.AttributeValueMemberN{Value: "100.50"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100.5").Equal(v.(decimal.Decimal)))

	v, err = d.NormalizeValue(&types.AttributeValueMemberNULL{Value: true})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = d.NormalizeValue(&types.AttributeValueMemberL{})
	assert.Error(t, err)
}

func TestFactories_Registered(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "mysql", "postgres", "sqlite"}, GetRegisteredTypes())

	_, err := Create(config.Settings{Driver: "oracle"})
	assert.ErrorContains(t, err, "registered: dynamodb, mysql, postgres, sqlite")
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name     string
		settings config.Settings
		wantErr  string
	}{
		{"unknown driver", config.Settings{Driver: "oracle"}, "unsupported driver"},
		{"postgres without hosts", config.Settings{Driver: "postgres", Database: "db", Username: "u"}, "hosts is required"},
		{"mysql without database", config.Settings{Driver: "mysql", Hosts: []string{"h"}, Username: "u"}, "database is required"},
		{"mysql bad sslmode", config.Settings{Driver: "mysql", Hosts: []string{"h"}, Database: "d", Username: "u", SSLMode: "sometimes"}, "unsupported sslmode"},
		{"sqlite without path", config.Settings{Driver: "sqlite"}, "database (file path) or dsn"},
		{"dynamodb without region", config.Settings{Driver: "dynamodb"}, "region is required"},
		{"dynamodb half credentials", config.Settings{Driver: "dynamodb", Region: "us-east-1", AccessKeyID: "x"}, "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.settings)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMySQLDSNs(t *testing.T) {
	dsns, err := mysqlDSNs(config.Settings{
		Hosts:          []string{"db1", "db2:3307"},
		Database:       "bank",
		Username:       "cache",
		Password:       "secret",
		ConnectTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, dsns, 2)

	cfg, err := mysql.ParseDSN(dsns[0])
	require.NoError(t, err)
	assert.Equal(t, "db1:3306", cfg.Addr)
	assert.Equal(t, "bank", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, 2*time.Second, cfg.Timeout)

	cfg, err = mysql.ParseDSN(dsns[1])
	require.NoError(t, err)
	assert.Equal(t, "db2:3307", cfg.Addr)
}

func TestPostgresURL(t *testing.T) {
	raw := postgresURL(config.Settings{
		Database:       "bank",
		Username:       "cache",
		Password:       "p@ss",
		SSLMode:        "require",
		ConnectTimeout: 1500 * time.Millisecond,
	}, "db1:5432")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "db1:5432", u.Host)
	assert.Equal(t, "/bank", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "2", u.Query().Get("connect_timeout"))

	c, err := (&PostgresConnectorFactory{}).Create(config.Settings{
		Driver: "postgres", Hosts: []string{"a", "b"}, Database: "d", Username: "u",
	})
	require.NoError(t, err)
	assert.Len(t, c.(*PostgresConnector).connStrings, 2)
}
