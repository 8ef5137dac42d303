// ABOUTME: Configuration loading and parsing for tool-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "TOOL_GATEWAY_CONFIG"

// Defaults applied by Load for fields the file leaves empty.
const (
	DefaultHTTPAddr             = "0.0.0.0:8000"
	DefaultReadHeaderTimeout    = 10 * time.Second
	DefaultWriteTimeout         = 60 * time.Second
	DefaultMaxBodyBytes         = 1 << 20
	DefaultMongoURI             = "mongodb://localhost:27017"
	DefaultTrafficDatabase      = "traffic_db"
	DefaultMeasurementsDatabase = "measurements_db"
	DefaultCollection           = "data"
	DefaultQueryTimeout         = 30 * time.Second
	DefaultConnectTimeout       = 10 * time.Second
	DefaultSessionTTL           = 30 * time.Minute
	DefaultSessionMaxEntries    = 10000
	DefaultServerName           = "MongoToolServer"
	DefaultServerVersion        = "1.0.0"
	DefaultServerDescription    = "This server provides tools to interact with a local MongoDB database."
	DefaultProtocolVersion      = "2025-11-25"
	DefaultServiceName          = "tool-gateway"
)

// Config represents the complete tool-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Mongo     MongoConfig     `yaml:"mongo" toml:"mongo"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	MCP       MCPConfig       `yaml:"mcp" toml:"mcp"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr" toml:"grpc_addr"` // empty disables the gRPC health service
	MaxBodyBytes int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigin   string `yaml:"cors_origin" toml:"cors_origin"`

	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`
	WriteTimeout      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
	WriteTimeoutRaw      string `yaml:"write_timeout" toml:"write_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // serve HTTPS on :443 with tailnet certificates
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // expose publicly via Funnel (implies HTTPS)
}

// MongoConfig holds the document store connection
type MongoConfig struct {
	URI                  string `yaml:"uri" toml:"uri"`
	TrafficDatabase      string `yaml:"traffic_database" toml:"traffic_database"`
	MeasurementsDatabase string `yaml:"measurements_database" toml:"measurements_database"`
	Collection           string `yaml:"collection" toml:"collection"`

	QueryTimeout   time.Duration `yaml:"-" toml:"-"`
	ConnectTimeout time.Duration `yaml:"-" toml:"-"`

	QueryTimeoutRaw   string `yaml:"query_timeout" toml:"query_timeout"`
	ConnectTimeoutRaw string `yaml:"connect_timeout" toml:"connect_timeout"`
}

// SessionsConfig bounds the session store
type SessionsConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	TTLRaw     string        `yaml:"ttl" toml:"ttl"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`
}

// MCPConfig holds the identity advertised to clients
type MCPConfig struct {
	ServerName      string `yaml:"server_name" toml:"server_name"`
	ServerVersion   string `yaml:"server_version" toml:"server_version"`
	Description     string `yaml:"description" toml:"description"`
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`
}

// AuditConfig holds the invocation log location. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" toml:"service_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes raw configuration bytes, then applies defaults and validates.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}

	if c.Mongo.URI == "" {
		c.Mongo.URI = DefaultMongoURI
	}
	if c.Mongo.TrafficDatabase == "" {
		c.Mongo.TrafficDatabase = DefaultTrafficDatabase
	}
	if c.Mongo.MeasurementsDatabase == "" {
		c.Mongo.MeasurementsDatabase = DefaultMeasurementsDatabase
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = DefaultCollection
	}
	if c.Mongo.QueryTimeout == 0 {
		c.Mongo.QueryTimeout = DefaultQueryTimeout
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = DefaultConnectTimeout
	}

	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = DefaultSessionTTL
	}
	if c.Sessions.MaxEntries == 0 {
		c.Sessions.MaxEntries = DefaultSessionMaxEntries
	}

	if c.MCP.ServerName == "" {
		c.MCP.ServerName = DefaultServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = DefaultServerVersion
	}
	if c.MCP.Description == "" {
		c.MCP.Description = DefaultServerDescription
	}
	if c.MCP.ProtocolVersion == "" {
		c.MCP.ProtocolVersion = DefaultProtocolVersion
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New("server.max_body_bytes must not be negative")
	}

	u, err := url.Parse(c.Mongo.URI)
	if err != nil {
		return fmt.Errorf("mongo.uri is not a valid URL: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return errors.New("mongo.uri must use the mongodb or mongodb+srv scheme")
	}

	if c.Sessions.TTL < 0 {
		return errors.New("sessions.ttl must not be negative")
	}
	if c.Sessions.MaxEntries < 0 {
		return errors.New("sessions.max_entries must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"mongo.query_timeout", cfg.Mongo.QueryTimeoutRaw, &cfg.Mongo.QueryTimeout},
		{"mongo.connect_timeout", cfg.Mongo.ConnectTimeoutRaw, &cfg.Mongo.ConnectTimeout},
		{"sessions.ttl", cfg.Sessions.TTLRaw, &cfg.Sessions.TTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// DefaultPath returns the config file location: $TOOL_GATEWAY_CONFIG, then
// $XDG_CONFIG_HOME/tool-gateway/gateway.yaml, then ~/.config/tool-gateway/gateway.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tool-gateway", "gateway.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tool-gateway", "gateway.yaml"), nil
}

// Sample is the annotated file written by `tool-gateway init`.
const Sample = `# tool-gateway configuration
server:
  http_addr: "0.0.0.0:8000"
  grpc_addr: "0.0.0.0:50051"   # gRPC health service; remove to disable
  read_header_timeout: "10s"
  write_timeout: "60s"
  max_body_bytes: 1048576
  cors_origin: "*"

tailscale:
  enabled: false
  hostname: "tool-gateway"
  auth_key: "${TS_AUTHKEY}"
  state_dir: ""
  ephemeral: false
  https: false
  funnel: false

mongo:
  uri: "mongodb://localhost:27017"
  traffic_database: "traffic_db"
  measurements_database: "measurements_db"
  collection: "data"
  query_timeout: "30s"
  connect_timeout: "10s"

sessions:
  ttl: "30m"
  max_entries: 10000

mcp:
  server_name: "MongoToolServer"
  server_version: "1.0.0"
  description: "This server provides tools to interact with a local MongoDB database."
  protocol_version: "2025-11-25"

audit:
  path: ""   # e.g. ~/.local/share/tool-gateway/invocations.db

telemetry:
  enabled: false
  otlp_endpoint: "http://localhost:4318"
  service_name: "tool-gateway"

logging:
  level: "info"
  format: "text"
`
