package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the TV bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Device    DeviceConfig    `yaml:"device"`
	Remote    RemoteConfig    `yaml:"remote"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DeviceConfig describes the TV endpoint the bridge pairs with.
type DeviceConfig struct {
	// Key identifies the device in MQTT topics and the token store.
	Key string `yaml:"key"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Host is the TV's IP address or hostname.
	Host string `yaml:"host"`

	// Port is the pairing HTTP port. Default: 8080
	Port int `yaml:"port"`

	// AppID is sent with every pairing step.
	AppID string `yaml:"app_id"`

	// DeviceID identifies this client to the TV during pairing.
	// Derived from the host when empty so restarts reuse the same identity.
	DeviceID string `yaml:"device_id"`

	// ID is the identity fed to the handshake cipher.
	// Derived from the host when empty.
	ID string `yaml:"id"`

	// Token is a previously persisted "{ctx}:{session_id}" string.
	Token string `yaml:"token"`

	// Paired records whether pairing has completed before.
	Paired bool `yaml:"paired"`

	// MACAddress enables wake-on-LAN power on.
	MACAddress string `yaml:"mac_address"`
}

// RemoteConfig contains control-channel timing and helper settings.
type RemoteConfig struct {
	// SettleDelay is slept after connect and around each command frame.
	// Default: 350ms
	SettleDelay time.Duration `yaml:"settle_delay"`

	// PollInterval is the delay between power status polls.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// PowerOnAttempts bounds the wake-and-poll loop. Default: 20
	PowerOnAttempts int `yaml:"power_on_attempts"`

	// PowerOffAttempts bounds the power-off confirmation loop. Default: 10
	PowerOffAttempts int `yaml:"power_off_attempts"`

	// PowerOffConfirm is waited after each power key. Default: 2s
	PowerOffConfirm time.Duration `yaml:"power_off_confirm"`

	// HTTPTimeout applies to pin page checks and socket negotiation. Default: 3s
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// SocketPort is the socket.io port on the TV. Default: 8000
	SocketPort int `yaml:"socket_port"`

	// WakeAddress is the UDP broadcast address for magic packets.
	// Default: "255.255.255.255:9"
	WakeAddress string `yaml:"wake_address"`

	// HandshakeHelper is the executable implementing the pairing cipher.
	// Pairing is unavailable when empty; a persisted token still works.
	HandshakeHelper string `yaml:"handshake_helper"`

	// StateInterval is how often the bridge republishes TV state. Default: 30s
	StateInterval time.Duration `yaml:"state_interval"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Panel    PanelConfig      `yaml:"panel"`
}

// PanelConfig controls the browser remote served at "/".
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir serves the page from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the state event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// identityNamespace scopes the derived device identities.
var identityNamespace = uuid.MustParse("6f1c3c5e-2a43-4f0b-9f53-7b1f0c7c2d10")

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Derived values (device identities)
//
// Environment variables follow the pattern: TVBRIDGE_SECTION_KEY
// For example: TVBRIDGE_DEVICE_HOST, TVBRIDGE_DATABASE_PATH
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
	cfg.deriveIdentities()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Device: DeviceConfig{
			Key:   "tv",
			Name:  "Gray Logic",
			Port:  8080,
			AppID: "12345",
		},
		Remote: RemoteConfig{
			SettleDelay:      350 * time.Millisecond,
			PollInterval:     time.Second,
			PowerOnAttempts:  20,
			PowerOffAttempts: 10,
			PowerOffConfirm:  2 * time.Second,
			HTTPTimeout:      3 * time.Second,
			SocketPort:       8000,
			WakeAddress:      "255.255.255.255:9",
			StateInterval:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/tvbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-tvbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
			Panel: PanelConfig{Enabled: true},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             10,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TVBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("TVBRIDGE_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}
	if v := os.Getenv("TVBRIDGE_DEVICE_TOKEN"); v != "" {
		cfg.Device.Token = v
	}
	if v := os.Getenv("TVBRIDGE_DEVICE_MAC"); v != "" {
		cfg.Device.MACAddress = v
	}

	// Database
	if v := os.Getenv("TVBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("TVBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TVBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TVBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("TVBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("TVBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("TVBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// deriveIdentities fills DeviceID and ID from the host when they are unset.
// The values are name-based UUIDs so they are stable across restarts, which
// keeps a persisted pairing token valid.
func (c *Config) deriveIdentities() {
	if c.Device.Host == "" {
		return
	}
	if c.Device.DeviceID == "" {
		c.Device.DeviceID = uuid.NewSHA1(identityNamespace, []byte("device:"+c.Device.Host)).String()
	}
	if c.Device.ID == "" {
		c.Device.ID = uuid.NewSHA1(identityNamespace, []byte("id:"+c.Device.Host)).String()
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Device validation
	if c.Device.Host == "" {
		errs = append(errs, "device.host is required (set TVBRIDGE_DEVICE_HOST environment variable)")
	}
	if c.Device.Key == "" {
		errs = append(errs, "device.key is required")
	} else if strings.ContainsAny(c.Device.Key, "/+#") {
		errs = append(errs, "device.key must not contain MQTT topic characters")
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.Device.AppID == "" {
		errs = append(errs, "device.app_id is required")
	}

	// Remote validation
	if c.Remote.PowerOnAttempts < 1 {
		errs = append(errs, "remote.power_on_attempts must be at least 1")
	}
	if c.Remote.PowerOffAttempts < 1 {
		errs = append(errs, "remote.power_off_attempts must be at least 1")
	}
	if c.Remote.SocketPort < 1 || c.Remote.SocketPort > 65535 {
		errs = append(errs, "remote.socket_port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API can switch a TV on and off; an empty or weak secret would
		// let anyone on the network forge tokens.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the API is enabled (set TVBRIDGE_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
		if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
			errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be at least 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
