package tsdb

import (
	"fmt"
	"sort"
	"strings"
	"time"
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
	tags := map[string]string{
		"result": result,
	}
	if reason != "" {
		tags["reason"] = reason
	}

	c.addLine(formatLineProtocol(
		"access_events",
		tags,
		map[string]interface{}{
			"user_id":    userID,
			"confidence": confidence,
			"count":      1,
		},
		time.Now(),
	))
}

// WriteDoorTransition writes a door lock state change to the
// door_transitions measurement.
//
// Parameters:
//   - state: The lock state entered ("LOCKED", "UNLOCKED", ...)
func (c *Client) WriteDoorTransition(state string) {
	c.addLine(formatLineProtocol(
		"door_transitions",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	))
}

// WriteSensorHealth writes a hardware health sample to the
// sensor_health measurement.
//
// Parameters:
//   - component: The hardware component ("fingerprint", "database")
//   - healthy: Whether the last health check passed
func (c *Client) WriteSensorHealth(component string, healthy bool) {
	up := 0
	if healthy {
		up = 1
	}

	c.addLine(formatLineProtocol(
		"sensor_health",
		map[string]string{
			"component": component,
		},
		map[string]interface{}{
			"up": up,
		},
		time.Now(),
	))
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
	c.addLine(formatLineProtocol(measurement, tags, fields, time.Now()))
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
	c.addLine(formatLineProtocol(measurement, tags, fields, timestamp))
}

// formatLineProtocol formats a data point as an InfluxDB line protocol string.
//
// Format: measurement,tag1=val1,tag2=val2 field1=val1,field2=val2 timestamp_ns
//
// VictoriaMetrics accepts this format on the /write endpoint.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) string {
	var b strings.Builder

	// Measurement (escaped to prevent injection)
	b.WriteString(escapeMeasurement(measurement))

	// Tags (sorted for deterministic output and testability)
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	// Fields (sorted for deterministic output)
	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	first := true
	for _, k := range fieldKeys {
		v := fields[k]
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch val := v.(type) {
		case float64:
			b.WriteString(fmt.Sprintf("%g", val))
		case int:
			b.WriteString(fmt.Sprintf("%di", val))
		case int64:
			b.WriteString(fmt.Sprintf("%di", val))
		case bool:
			if val {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case string:
			b.WriteString(fmt.Sprintf("%q", val))
		default:
			b.WriteString(fmt.Sprintf("%v", val))
		}
	}

	// Timestamp in nanoseconds
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))

	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line protocol spec.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
// Newlines are stripped to prevent line protocol injection.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
