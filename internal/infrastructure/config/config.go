package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the indicator core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Display   DisplayConfig   `yaml:"display"`
	Water     WaterConfig     `yaml:"water"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DeviceConfig identifies the indicator and seeds its initial state.
type DeviceConfig struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	DefaultWaterLevel int    `yaml:"default_water_level"`
}

// DisplayConfig contains poll/render loop settings.
type DisplayConfig struct {
	// TickInterval is the poll/render cadence in milliseconds.
	TickInterval int `yaml:"tick_interval"`
	// StatusInterval is how often network/display status is logged, in seconds.
	StatusInterval  int `yaml:"status_interval"`
	RenderQueueSize int `yaml:"render_queue_size"`
	InputQueueSize  int `yaml:"input_queue_size"`
}

// WaterConfig contains tank alarm thresholds (percent).
type WaterConfig struct {
	LowThreshold      int `yaml:"low_threshold"`
	CriticalThreshold int `yaml:"critical_threshold"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled          bool                `yaml:"enabled"`
	Broker           MQTTBrokerConfig    `yaml:"broker"`
	Auth             MQTTAuthConfig      `yaml:"auth"`
	QoS              int                 `yaml:"qos"`
	KeepAlive        int                 `yaml:"keep_alive"`
	Reconnect        MQTTReconnectConfig `yaml:"reconnect"`
	Topics           MQTTTopicsConfig    `yaml:"topics"`
	PublishQueueSize int                 `yaml:"publish_queue_size"`
	HealthInterval   int                 `yaml:"health_interval"`
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

// MQTTTopicsConfig names the topics the indicator uses on the broker.
type MQTTTopicsConfig struct {
	LightState   string `yaml:"light_state"`
	LightCommand string `yaml:"light_command"`
	WaterLevel   string `yaml:"water_level"`
	Status       string `yaml:"status"`
	Health       string `yaml:"health"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the web panel from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite settings for the state history audit trail.
type DatabaseConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Path                 string `yaml:"path"`
	WALMode              bool   `yaml:"wal_mode"`
	BusyTimeout          int    `yaml:"busy_timeout"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
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

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
}

// SimulatorConfig enables the random water level source used on the bench.
type SimulatorConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
	// OperatorPasswordHash is an Argon2id PHC string (see `indicator hash-password`).
	// Empty disables operator login.
	OperatorPasswordHash string `yaml:"operator_password_hash"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
	PanelTokenTTL  int    `yaml:"panel_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INDICATOR_SECTION_KEY
// For example: INDICATOR_DATABASE_PATH, INDICATOR_API_PORT.
// The firmware variables MQTT_BROKER_URL, MQTT_USERNAME and MQTT_PASSWORD
// are honoured as well.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied, for running without a config file.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with the firmware's defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:                "sensecap-indicator-d1",
			Name:              "SenseCAP Indicator",
			DefaultWaterLevel: 50,
		},
		Display: DisplayConfig{
			TickInterval:    30,
			StatusInterval:  5,
			RenderQueueSize: 256,
			InputQueueSize:  64,
		},
		Water: WaterConfig{
			LowThreshold:      20,
			CriticalThreshold: 10,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "broker.hivemq.com",
				Port:     1883,
				ClientID: "sensecap_indicator_d1",
			},
			QoS:       1,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Topics: MQTTTopicsConfig{
				LightState:   "sensecap/indicator/light/state",
				LightCommand: "sensecap/indicator/light/set",
				WaterLevel:   "sensecap/indicator/water/level",
				Status:       "sensecap/indicator/status",
				Health:       "sensecap/indicator/health",
			},
			PublishQueueSize: 64,
			HealthInterval:   30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
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
		Database: DatabaseConfig{
			Enabled:              true,
			Path:                 "./data/indicator.db",
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "indicator",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Discovery: DiscoveryConfig{
			Service: "_indicator._tcp",
			Domain:  "local.",
		},
		Simulator: SimulatorConfig{
			Interval: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
				PanelTokenTTL:  525600,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Firmware-compatible variables first so INDICATOR_* can refine them.
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		if err := applyBrokerURL(&cfg.MQTT.Broker, v); err != nil {
			return err
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Device
	if v := os.Getenv("INDICATOR_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Database
	if v := os.Getenv("INDICATOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("INDICATOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INDICATOR_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INDICATOR_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("INDICATOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INDICATOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("INDICATOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("INDICATOR_API_PANEL_DIR"); v != "" {
		cfg.API.PanelDir = v
	}

	// InfluxDB
	if v := os.Getenv("INDICATOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("INDICATOR_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("INDICATOR_OPERATOR_PASSWORD_HASH"); v != "" {
		cfg.Security.OperatorPasswordHash = v
	}

	return nil
}

// applyBrokerURL parses a broker URL of the form mqtt://host:port.
// The mqtts and ssl schemes enable TLS.
func applyBrokerURL(broker *MQTTBrokerConfig, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("MQTT_BROKER_URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp":
		broker.TLS = false
	case "mqtts", "ssl", "tls":
		broker.TLS = true
	default:
		return fmt.Errorf("MQTT_BROKER_URL: unsupported scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("MQTT_BROKER_URL: missing host")
	}
	broker.Host = u.Hostname()

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("MQTT_BROKER_URL: invalid port: %w", err)
		}
		broker.Port = port
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.DefaultWaterLevel < 0 || c.Device.DefaultWaterLevel > 100 {
		errs = append(errs, "device.default_water_level must be between 0 and 100")
	}

	if c.Display.TickInterval < 1 {
		errs = append(errs, "display.tick_interval must be at least 1ms")
	}
	if c.Display.StatusInterval < 1 {
		errs = append(errs, "display.status_interval must be at least 1s")
	}

	if c.Water.CriticalThreshold < 0 || c.Water.LowThreshold > 100 {
		errs = append(errs, "water thresholds must be between 0 and 100")
	} else if c.Water.CriticalThreshold > c.Water.LowThreshold {
		errs = append(errs, "water.critical_threshold must not exceed water.low_threshold")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Topics.LightState == "" || c.MQTT.Topics.WaterLevel == "" {
			errs = append(errs, "mqtt.topics.light_state and mqtt.topics.water_level are required")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// Tokens gate remote mode commands on a physical device.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set INDICATOR_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Simulator.Enabled && c.Simulator.Interval < 1 {
		errs = append(errs, "simulator.interval must be at least 1s")
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

// GetTickInterval returns the poll/render cadence as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Display.TickInterval) * time.Millisecond
}

// GetStatusInterval returns the status logging period as a Duration.
func (c *Config) GetStatusInterval() time.Duration {
	return time.Duration(c.Display.StatusInterval) * time.Second
}
