// Package notify fans state changes out to the site.
//
// The Notifier is wired as an observer on the authentication engine
// and the door controller. It publishes snapshots to the MQTT topic
// hierarchy, records decisions and transitions in InfluxDB, and
// accepts remote lock commands from the broker. Both sinks are
// optional so a standalone deployment can run with neither.
package notify
