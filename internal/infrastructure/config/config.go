package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Door Sentinel.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	System      SystemConfig      `yaml:"system"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	TSDB        TSDBConfig        `yaml:"tsdb"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
	Camera      CameraConfig      `yaml:"camera"`
	Face        FaceConfig        `yaml:"face"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Door        DoorConfig        `yaml:"door"`
	Auth        AuthConfig        `yaml:"auth"`
}

// SystemConfig contains installation-specific information.
type SystemConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
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

// TSDBConfig contains VictoriaMetrics connection settings. It is the
// lightweight alternative to InfluxDB; at most one metrics backend
// should be enabled.
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CameraConfig contains frame source settings.
type CameraConfig struct {
	// Device is the capture device identifier (e.g., "/dev/video0").
	// The built-in simulator is used when empty.
	Device string `yaml:"device"`

	// FrameInterval is how often the capture loop publishes a frame.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// FaceConfig contains face matching settings.
type FaceConfig struct {
	// Tolerance is the maximum Euclidean distance for a positive match.
	Tolerance float64 `yaml:"tolerance"`

	// CacheTTL is how long the enrolled-encoding cache stays fresh.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// FingerprintConfig contains fingerprint sensor settings.
type FingerprintConfig struct {
	// Mode selects the sensor backend: "device" or "sim".
	Mode string `yaml:"mode"`

	// Address is the sensor transport URL for device mode.
	// Supported schemes: tcp://host:port, unix:///path (serial adapters
	// exposed through ser2net or socat).
	Address string `yaml:"address"`

	// Password is the 32-bit handshake password. Zero on stock sensors.
	Password uint32 `yaml:"password"`

	// OpTimeout bounds a single command/ack exchange with the sensor.
	OpTimeout time.Duration `yaml:"op_timeout"`

	// CaptureWindow bounds one capture attempt during authentication.
	CaptureWindow time.Duration `yaml:"capture_window"`

	// SimAcceptRate is the probability that the simulator matches a
	// capture when no deterministic matcher is installed.
	SimAcceptRate float64 `yaml:"sim_accept_rate"`

	// Adapter optionally supervises the serial adapter subprocess
	// (ser2net, socat) that exposes the sensor's UART as the socket
	// named by Address. Empty binary disables supervision.
	Adapter AdapterConfig `yaml:"adapter"`
}

// AdapterConfig describes a managed serial adapter subprocess.
type AdapterConfig struct {
	Binary       string        `yaml:"binary"`
	Args         []string      `yaml:"args"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	MaxRestarts  int           `yaml:"max_restarts"`
}

// DoorConfig contains lock actuation settings.
type DoorConfig struct {
	// Mode selects the actuator backend: "gpio" or "sim".
	Mode string `yaml:"mode"`

	// GPIOPath is the sysfs value file driving the lock relay.
	GPIOPath string `yaml:"gpio_path"`

	// UnlockDuration is how long the door stays unlocked after a grant.
	UnlockDuration time.Duration `yaml:"unlock_duration"`

	// MonitorInterval is the door status broadcast cadence.
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// AuthConfig contains authentication session settings.
type AuthConfig struct {
	// PollInterval is the orchestrator tick cadence.
	PollInterval time.Duration `yaml:"poll_interval"`

	// SessionTimeout bounds a session from face match to decision.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// GrantDwell is the pause after a terminal decision before the
	// orchestrator returns to idle.
	GrantDwell time.Duration `yaml:"grant_dwell"`

	// TimeoutDwell is the shorter pause after a session timeout.
	TimeoutDwell time.Duration `yaml:"timeout_dwell"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORSENTINEL_SECTION_KEY
// For example: DOORSENTINEL_DATABASE_PATH, DOORSENTINEL_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			ID:       "door-001",
			Name:     "Door Sentinel",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/doorsentinel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorsentinel",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Camera: CameraConfig{
			FrameInterval: 100 * time.Millisecond,
		},
		Face: FaceConfig{
			Tolerance: 0.6,
			CacheTTL:  30 * time.Second,
		},
		Fingerprint: FingerprintConfig{
			Mode:          "sim",
			OpTimeout:     5 * time.Second,
			CaptureWindow: 2 * time.Second,
			SimAcceptRate: 0.8,
		},
		Door: DoorConfig{
			Mode:            "sim",
			UnlockDuration:  5 * time.Second,
			MonitorInterval: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			PollInterval:   50 * time.Millisecond,
			SessionTimeout: 30 * time.Second,
			GrantDwell:     3 * time.Second,
			TimeoutDwell:   2 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORSENTINEL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DOORSENTINEL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOORSENTINEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORSENTINEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORSENTINEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DOORSENTINEL_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DOORSENTINEL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Fingerprint sensor
	if v := os.Getenv("DOORSENTINEL_FINGERPRINT_ADDRESS"); v != "" {
		cfg.Fingerprint.Address = v
	}
	if v := os.Getenv("DOORSENTINEL_FINGERPRINT_PASSWORD"); v != "" {
		if pw, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.Fingerprint.Password = uint32(pw)
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// System validation
	if c.System.ID == "" {
		errs = append(errs, "system.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Metrics backends are mutually exclusive
	if c.InfluxDB.Enabled && c.TSDB.Enabled {
		errs = append(errs, "influxdb and tsdb cannot both be enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Face matching validation
	if c.Face.Tolerance <= 0 || c.Face.Tolerance > 1 {
		errs = append(errs, "face.tolerance must be in (0, 1]")
	}
	if c.Face.CacheTTL <= 0 {
		errs = append(errs, "face.cache_ttl must be positive")
	}

	// Fingerprint validation
	switch c.Fingerprint.Mode {
	case "device":
		if c.Fingerprint.Address == "" {
			errs = append(errs, "fingerprint.address is required in device mode")
		}
	case "sim":
		if c.Fingerprint.SimAcceptRate < 0 || c.Fingerprint.SimAcceptRate > 1 {
			errs = append(errs, "fingerprint.sim_accept_rate must be in [0, 1]")
		}
	default:
		errs = append(errs, "fingerprint.mode must be \"device\" or \"sim\"")
	}
	if c.Fingerprint.CaptureWindow <= 0 {
		errs = append(errs, "fingerprint.capture_window must be positive")
	}

	// Door validation
	switch c.Door.Mode {
	case "gpio":
		if c.Door.GPIOPath == "" {
			errs = append(errs, "door.gpio_path is required in gpio mode")
		}
	case "sim":
	default:
		errs = append(errs, "door.mode must be \"gpio\" or \"sim\"")
	}
	if c.Door.UnlockDuration <= 0 {
		errs = append(errs, "door.unlock_duration must be positive")
	}

	// Auth session validation
	if c.Auth.PollInterval <= 0 {
		errs = append(errs, "auth.poll_interval must be positive")
	}
	if c.Auth.SessionTimeout <= c.Auth.PollInterval {
		errs = append(errs, "auth.session_timeout must exceed auth.poll_interval")
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
