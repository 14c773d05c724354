// Package influxdb provides InfluxDB connectivity for Door Sentinel.
//
// It wraps the official influxdb-client-go v2 library with Door
// Sentinel-specific patterns for connection management, metric writing,
// and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Authentication decisions (access_events)
//   - Door lock state changes (door_transitions)
//   - Fingerprint sensor and camera health (sensor_health)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "doorsentinel",
//	    Bucket: "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a grant
//	client.WriteAccessEvent("SUCCESS", "", 42, 0.87)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
