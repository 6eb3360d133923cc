package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for railcontrol.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Automode  AutomodeConfig  `yaml:"automode"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Storage   StorageConfig   `yaml:"storage"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies the layout this instance controls.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AutomodeConfig tunes the per-locomotive automode loop.
type AutomodeConfig struct {
	// TickIntervalMS is the period of the automode loop in milliseconds.
	TickIntervalMS int `yaml:"tick_interval_ms"`

	// TracksToReserve is how many route legs a locomotive holds ahead (1 or 2).
	TracksToReserve int `yaml:"tracks_to_reserve"`

	// SelectionPolicy is the default route selection policy:
	// "first", "random" or "longest_unused".
	SelectionPolicy string `yaml:"selection_policy"`

	// QueueSize bounds the per-locomotive feedback event queue.
	QueueSize int `yaml:"queue_size"`

	// StopTimeout bounds how long shutdown waits for locomotives to reach
	// manual mode before forcing them.
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// HardwareConfig lists the hardware controls.
type HardwareConfig struct {
	Controls []ControlConfig `yaml:"controls"`
}

// ControlConfig configures one hardware control.
type ControlConfig struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "virtual" or "mqtt"
	PulseMS int    `yaml:"pulse_ms"`
}

// StorageConfig contains layout persistence settings.
type StorageConfig struct {
	// LayoutFile is an optional YAML seed imported when the database is empty.
	LayoutFile string `yaml:"layout_file"`

	// SnapshotSchedule is a cron expression for periodic state snapshots.
	// Empty disables scheduled snapshots.
	SnapshotSchedule string `yaml:"snapshot_schedule"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT   JWTConfig    `yaml:"jwt"`
	Users []UserConfig `yaml:"users"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// UserConfig is one API account. PasswordHash is an Argon2id PHC string
// produced by "railcontrol hash-password".
type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"` // "operator" or "observer"
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RAILCONTROL_SECTION_KEY
// For example: RAILCONTROL_DATABASE_PATH, RAILCONTROL_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "layout-001",
			Name: "Railcontrol",
		},
		Database: DatabaseConfig{
			Path:        "./data/railcontrol.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "railcontrol-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Automode: AutomodeConfig{
			TickIntervalMS:  1000,
			TracksToReserve: 2,
			SelectionPolicy: "first",
			QueueSize:       8,
			StopTimeout:     30 * time.Second,
		},
		Hardware: HardwareConfig{
			Controls: []ControlConfig{
				{ID: 1, Name: "virtual", Type: "virtual"},
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RAILCONTROL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAILCONTROL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("RAILCONTROL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RAILCONTROL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RAILCONTROL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("RAILCONTROL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RAILCONTROL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("RAILCONTROL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("RAILCONTROL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("RAILCONTROL_AUTOMODE_POLICY"); v != "" {
		cfg.Automode.SelectionPolicy = v
	}

	if v := os.Getenv("RAILCONTROL_LAYOUT_FILE"); v != "" {
		cfg.Storage.LayoutFile = v
	}

	// Always override the secret from the environment in production.
	if v := os.Getenv("RAILCONTROL_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Automode.validate()...)
	errs = append(errs, c.Hardware.validate(c.MQTT.Enabled)...)

	if c.Storage.SnapshotSchedule != "" {
		if _, err := cron.ParseStandard(c.Storage.SnapshotSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("storage.snapshot_schedule is invalid: %v", err))
		}
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set RAILCONTROL_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	for i, u := range c.Security.Users {
		if u.Username == "" || u.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.users[%d] needs username and password_hash", i))
		}
		if u.Role != "" && u.Role != "operator" && u.Role != "observer" {
			errs = append(errs, fmt.Sprintf("security.users[%d].role must be operator or observer", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (a AutomodeConfig) validate() []string {
	var errs []string
	if a.TickIntervalMS < 10 {
		errs = append(errs, "automode.tick_interval_ms must be at least 10")
	}
	if a.TracksToReserve != 1 && a.TracksToReserve != 2 {
		errs = append(errs, "automode.tracks_to_reserve must be 1 or 2")
	}
	switch a.SelectionPolicy {
	case "first", "random", "longest_unused":
	default:
		errs = append(errs, "automode.selection_policy must be first, random or longest_unused")
	}
	if a.QueueSize < 1 {
		errs = append(errs, "automode.queue_size must be positive")
	}
	if a.StopTimeout <= 0 {
		errs = append(errs, "automode.stop_timeout must be positive")
	}
	return errs
}

func (h HardwareConfig) validate(mqttEnabled bool) []string {
	var errs []string
	seen := make(map[int]bool, len(h.Controls))
	for i, c := range h.Controls {
		if c.ID < 1 || c.ID > 255 {
			errs = append(errs, fmt.Sprintf("hardware.controls[%d].id must be between 1 and 255", i))
		}
		if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("hardware.controls[%d].id %d is duplicated", i, c.ID))
		}
		seen[c.ID] = true
		switch c.Type {
		case "virtual":
		case "mqtt":
			if !mqttEnabled {
				errs = append(errs, fmt.Sprintf("hardware.controls[%d] uses mqtt but mqtt.enabled is false", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("hardware.controls[%d].type must be virtual or mqtt", i))
		}
		if c.PulseMS < 0 {
			errs = append(errs, fmt.Sprintf("hardware.controls[%d].pulse_ms must not be negative", i))
		}
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// TickInterval returns the automode loop period.
func (a AutomodeConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalMS) * time.Millisecond
}

// AccessTokenTTLDuration returns the JWT lifetime.
func (j JWTConfig) AccessTokenTTLDuration() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}
