package config

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// Property keys understood by the rematerializer. Unknown keys are ignored.
const (
	KeyDriver            = "driver"
	KeyHosts             = "hosts"
	KeyPort              = "port"
	KeyDatabase          = "database"
	KeyUsername          = "username"
	KeyPassword          = "password"
	KeySSLMode           = "sslmode"
	KeyDSN               = "dsn"
	KeyConnectTimeout    = "connect_timeout"
	KeyQueryTimeout      = "query_timeout"
	KeyReconnectInterval = "reconnect_interval"
	KeyRegion            = "region"
	KeyEndpoint          = "endpoint"
	KeyAccessKeyID       = "access_key_id"
	KeySecretAccessKey   = "secret_access_key"
)

// Keys lists every recognised property key.
var Keys = []string{
	KeyDriver, KeyHosts, KeyPort, KeyDatabase, KeyUsername, KeyPassword,
	KeySSLMode, KeyDSN, KeyConnectTimeout, KeyQueryTimeout, KeyReconnectInterval,
	KeyRegion, KeyEndpoint, KeyAccessKeyID, KeySecretAccessKey,
}

const (
	// DefaultDriver is used when the driver property is absent.
	DefaultDriver = "postgres"

	// DefaultConnectTimeout bounds a connect attempt when connect_timeout is absent.
	DefaultConnectTimeout = 10 * time.Second
)

// Properties is the string key/value configuration handed to Configure.
type Properties map[string]string

// Get returns the trimmed value of key, or "" when absent.
func (p Properties) Get(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Clone returns an independent copy of the properties.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Settings is the typed form of Properties.
type Settings struct {
	Driver   string
	Hosts    []string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// DSN, when set, overrides the connection string built from the other fields.
	DSN string

	ConnectTimeout    time.Duration
	QueryTimeout      time.Duration
	ReconnectInterval time.Duration

	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// Logger receives connector logs. It is not a property; callers set it
	// after parsing. Nil means log.Default().
	Logger *log.Logger
}

// Log returns the connector logger.
func (s Settings) Log() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// Settings parses and validates the properties. Errors name the offending key.
func (p Properties) Settings() (Settings, error) {
	s := Settings{
		Driver:          strings.ToLower(p.Get(KeyDriver)),
		Database:        p.Get(KeyDatabase),
		Username:        p.Get(KeyUsername),
		Password:        p[KeyPassword],
		SSLMode:         p.Get(KeySSLMode),
		DSN:             p.Get(KeyDSN),
		Region:          p.Get(KeyRegion),
		Endpoint:        p.Get(KeyEndpoint),
		AccessKeyID:     p.Get(KeyAccessKeyID),
		SecretAccessKey: p[KeySecretAccessKey],
		ConnectTimeout:  DefaultConnectTimeout,
	}
	if s.Driver == "" {
		s.Driver = DefaultDriver
	}

	for _, host := range strings.Split(p.Get(KeyHosts), ",") {
		if host = strings.TrimSpace(host); host != "" {
			s.Hosts = append(s.Hosts, host)
		}
	}

	if raw := p.Get(KeyPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("property %s: %q is not a number", KeyPort, raw)
		}
		if port <= 0 || port > 65535 {
			return Settings{}, fmt.Errorf("property %s must be between 1 and 65535", KeyPort)
		}
		s.Port = port
	}

	var err error
	if s.ConnectTimeout, err = p.duration(KeyConnectTimeout, DefaultConnectTimeout); err != nil {
		return Settings{}, err
	}
	if s.QueryTimeout, err = p.duration(KeyQueryTimeout, 0); err != nil {
		return Settings{}, err
	}
	if s.ReconnectInterval, err = p.duration(KeyReconnectInterval, 0); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// duration parses a Go duration ("5s") or a bare number of milliseconds.
func (p Properties) duration(key string, def time.Duration) (time.Duration, error) {
	raw := p.Get(key)
	if raw == "" {
		return def, nil
	}
	var d time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else if d, err = time.ParseDuration(raw); err != nil {
		return 0, fmt.Errorf("property %s: %q is not a duration", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("property %s must not be negative", key)
	}
	return d, nil
}

// HostPorts returns "host:port" addresses for every host, applying
// defaultPort when no port property was given. A host that already carries a
// port keeps it.
func (s Settings) HostPorts(defaultPort int) []string {
	port := s.Port
	if port == 0 {
		port = defaultPort
	}
	out := make([]string, 0, len(s.Hosts))
	for _, host := range s.Hosts {
		if _, _, err := net.SplitHostPort(host); err == nil {
			out = append(out, host)
			continue
		}
		out = append(out, net.JoinHostPort(host, strconv.Itoa(port)))
	}
	return out
}

// String describes the settings without credentials.
func (s Settings) String() string {
	return fmt.Sprintf("driver=%s hosts=%s port=%d database=%s user=%s",
		s.Driver, strings.Join(s.Hosts, ","), s.Port, s.Database, s.Username)
}
