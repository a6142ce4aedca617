package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

const mysqlDefaultPort = 3306

// MySQLDialect implements core.Dialect for MySQL.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QualifiedTable prefixes the table with the schema, which MySQL treats as a database name.
func (d MySQLDialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schemaName) + "." + d.QuoteIdent(table)
}

func (MySQLDialect) Placeholder(int) string { return "?" }

// BindParam binds decimals as their exact text so the server compares them
// without a float round trip.
func (MySQLDialect) BindParam(value any, kind core.ColumnKind) (any, error) {
	v, err := schema.Coerce(value, kind)
	if err != nil {
		return nil, err
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.String(), nil
	}
	return v, nil
}

func (MySQLDialect) NormalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case mysql.NullTime:
		if !v.Valid {
			return nil, nil
		}
		return v.Time, nil
	case *mysql.NullTime:
		if v == nil || !v.Valid {
			return nil, nil
		}
		return v.Time, nil
	}
	return value, nil
}

// MySQLConnectorFactory implements ConnectorFactory for MySQL.
type MySQLConnectorFactory struct{}

// Type returns the driver name for this factory.
func (f *MySQLConnectorFactory) Type() string {
	return "mysql"
}

// Validate validates the MySQL-specific settings.
func (f *MySQLConnectorFactory) Validate(settings config.Settings) error {
	if settings.DSN != "" {
		if _, err := mysql.ParseDSN(settings.DSN); err != nil {
			return fmt.Errorf("dsn: %w", err)
		}
		return nil
	}
	if len(settings.Hosts) == 0 {
		return fmt.Errorf("hosts is required for MySQL")
	}
	if settings.Database == "" {
		return fmt.Errorf("database is required for MySQL")
	}
	if settings.Username == "" {
		return fmt.Errorf("username is required for MySQL")
	}
	if _, err := mysqlTLS(settings.SSLMode); err != nil {
		return err
	}
	return nil
}

// Create creates a MySQL connector. One DSN is built per host.
func (f *MySQLConnectorFactory) Create(settings config.Settings) (core.Connector, error) {
	dsns, err := mysqlDSNs(settings)
	if err != nil {
		return nil, err
	}
	return &sqlConnector{
		driverName: "mysql",
		dsns:       dsns,
		dialect:    MySQLDialect{},
		tag:        "MYSQL",
		logger:     settings.Log(),
	}, nil
}

func mysqlDSNs(settings config.Settings) ([]string, error) {
	if settings.DSN != "" {
		return []string{settings.DSN}, nil
	}

	tls, err := mysqlTLS(settings.SSLMode)
	if err != nil {
		return nil, err
	}

	var dsns []string
	for _, addr := range settings.HostPorts(mysqlDefaultPort) {
		cfg := mysql.NewConfig()
		cfg.User = settings.Username
		cfg.Passwd = settings.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = settings.Database
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.Timeout = settings.ConnectTimeout
		cfg.ReadTimeout = settings.QueryTimeout
		cfg.TLSConfig = tls
		dsns = append(dsns, cfg.FormatDSN())
	}
	return dsns, nil
}

// mysqlTLS maps libpq-style sslmode values onto the driver's tls parameter.
func mysqlTLS(sslMode string) (string, error) {
	switch strings.ToLower(sslMode) {
	case "", "disable":
		return "", nil
	case "prefer", "preferred", "allow":
		return "preferred", nil
	case "require":
		return "skip-verify", nil
	case "verify-ca", "verify-full":
		return "true", nil
	default:
		return "", fmt.Errorf("unsupported sslmode %q for MySQL", sslMode)
	}
}

func init() {
	RegisterFactory(&MySQLConnectorFactory{})
}
