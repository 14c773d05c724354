package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
system:
  id: "door-entrance"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "127.0.0.1"
  port: 8080
fingerprint:
  mode: "sim"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.System.ID != "door-entrance" {
		t.Errorf("System.ID = %q, want %q", cfg.System.ID, "door-entrance")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive partial files
	if cfg.Face.Tolerance != 0.6 {
		t.Errorf("Face.Tolerance = %v, want 0.6", cfg.Face.Tolerance)
	}

	if cfg.Door.UnlockDuration != 5*time.Second {
		t.Errorf("Door.UnlockDuration = %v, want 5s", cfg.Door.UnlockDuration)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
system:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty system.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing system ID",
			mutate:  func(c *Config) { c.System.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "tolerance out of range",
			mutate:  func(c *Config) { c.Face.Tolerance = 1.5 },
			wantErr: true,
		},
		{
			name:    "device mode without address",
			mutate:  func(c *Config) { c.Fingerprint.Mode = "device" },
			wantErr: true,
		},
		{
			name: "device mode with address",
			mutate: func(c *Config) {
				c.Fingerprint.Mode = "device"
				c.Fingerprint.Address = "tcp://localhost:5000"
			},
			wantErr: false,
		},
		{
			name:    "unknown fingerprint mode",
			mutate:  func(c *Config) { c.Fingerprint.Mode = "serial" },
			wantErr: true,
		},
		{
			name:    "accept rate out of range",
			mutate:  func(c *Config) { c.Fingerprint.SimAcceptRate = 1.2 },
			wantErr: true,
		},
		{
			name:    "gpio mode without path",
			mutate:  func(c *Config) { c.Door.Mode = "gpio" },
			wantErr: true,
		},
		{
			name:    "zero unlock duration",
			mutate:  func(c *Config) { c.Door.UnlockDuration = 0 },
			wantErr: true,
		},
		{
			name: "both metrics backends enabled",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.TSDB.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "session timeout below poll interval",
			mutate: func(c *Config) {
				c.Auth.SessionTimeout = 10 * time.Millisecond
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("DOORSENTINEL_DATABASE_PATH", "/custom/path.db")
	t.Setenv("DOORSENTINEL_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DOORSENTINEL_MQTT_USERNAME", "testuser")
	t.Setenv("DOORSENTINEL_MQTT_PASSWORD", "testpass")
	t.Setenv("DOORSENTINEL_API_HOST", "192.168.1.1")
	t.Setenv("DOORSENTINEL_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("DOORSENTINEL_FINGERPRINT_ADDRESS", "tcp://sensor:5000")
	t.Setenv("DOORSENTINEL_FINGERPRINT_PASSWORD", "0xDEADBEEF")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Fingerprint.Address != "tcp://sensor:5000" {
		t.Errorf("Fingerprint.Address = %q, want %q", cfg.Fingerprint.Address, "tcp://sensor:5000")
	}

	if cfg.Fingerprint.Password != 0xDEADBEEF {
		t.Errorf("Fingerprint.Password = %#x, want 0xDEADBEEF", cfg.Fingerprint.Password)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.System.ID == "" {
		t.Error("defaultConfig should have non-empty System.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if cfg.Auth.PollInterval != 50*time.Millisecond {
		t.Errorf("defaultConfig Auth.PollInterval = %v, want 50ms", cfg.Auth.PollInterval)
	}

	if cfg.Auth.SessionTimeout != 30*time.Second {
		t.Errorf("defaultConfig Auth.SessionTimeout = %v, want 30s", cfg.Auth.SessionTimeout)
	}
}
