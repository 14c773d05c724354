package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAccessEvent writes one authentication decision to the
// access_events measurement.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - result: Terminal outcome ("SUCCESS", "DENIED", "FAILED")
//   - reason: Denial reason, empty on success
//   - userID: Matched user, 0 when no user was identified
//   - confidence: Combined decision confidence on success
//
// Example:
//
//	client.WriteAccessEvent("SUCCESS", "", 42, 0.87)
func (c *Client) WriteAccessEvent(result, reason string, userID int64, confidence float64) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"result": result,
	}
	if reason != "" {
		tags["reason"] = reason
	}

	point := write.NewPoint(
		"access_events",
		tags,
		map[string]interface{}{
			"user_id":    userID,
			"confidence": confidence,
			"count":      1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDoorTransition writes a door lock state change to the
// door_transitions measurement.
//
// Parameters:
//   - state: The lock state entered ("LOCKED", "UNLOCKED", ...)
func (c *Client) WriteDoorTransition(state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_transitions",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSensorHealth writes a hardware health sample to the
// sensor_health measurement.
//
// Parameters:
//   - component: The hardware component ("fingerprint", "camera")
//   - healthy: Whether the last health check passed
func (c *Client) WriteSensorHealth(component string, healthy bool) {
	if !c.IsConnected() {
		return
	}

	up := 0
	if healthy {
		up = 1
	}

	point := write.NewPoint(
		"sensor_health",
		map[string]string{
			"component": component,
		},
		map[string]interface{}{
			"up": up,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "door-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
