package mqtt

import "fmt"

// Topic prefixes for the Door Sentinel MQTT hierarchy.
//
// All topics live under a single root so a site broker can fence the
// whole namespace with one ACL entry: doorsentinel/{area}/{subject}
const (
	// TopicPrefix is the root of all Door Sentinel topics.
	TopicPrefix = "doorsentinel"

	// TopicPrefixAuth is the base for authentication session topics.
	TopicPrefixAuth = "doorsentinel/auth"

	// TopicPrefixDoor is the base for door lock topics.
	TopicPrefixDoor = "doorsentinel/door"

	// TopicPrefixSensor is the base for hardware health topics.
	TopicPrefixSensor = "doorsentinel/sensor"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "doorsentinel/system"
)

// Topics provides builders for Door Sentinel MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DoorState()
//	// Returns: "doorsentinel/door/state"
type Topics struct{}

// AuthStatus returns the topic for the current orchestrator phase.
// Published retained so panels joining late see the live phase.
//
// Example: doorsentinel/auth/status
func (Topics) AuthStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixAuth)
}

// AuthSession returns the topic for session lifecycle events (opened,
// waiting for fingerprint).
//
// Example: doorsentinel/auth/session
func (Topics) AuthSession() string {
	return fmt.Sprintf("%s/session", TopicPrefixAuth)
}

// AuthResult returns the topic for terminal session decisions.
//
// Example: doorsentinel/auth/result
func (Topics) AuthResult() string {
	return fmt.Sprintf("%s/result", TopicPrefixAuth)
}

// DoorState returns the topic for lock state changes.
// Published retained so subscribers always know the current state.
//
// Example: doorsentinel/door/state
func (Topics) DoorState() string {
	return fmt.Sprintf("%s/state", TopicPrefixDoor)
}

// DoorCommand returns the topic for remote lock commands. The service
// subscribes here; site automation publishes "lock" or "emergency_lock".
//
// Example: doorsentinel/door/command
func (Topics) DoorCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixDoor)
}

// SensorHealth returns the topic for fingerprint sensor and camera
// health reports.
//
// Example: doorsentinel/sensor/health
func (Topics) SensorHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixSensor)
}

// SystemStatus returns the service online/offline status topic, also
// used for the Last Will message.
//
// Example: doorsentinel/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllAuth returns a pattern matching all authentication topics.
//
// Pattern: doorsentinel/auth/+
func (Topics) AllAuth() string {
	return fmt.Sprintf("%s/+", TopicPrefixAuth)
}

// AllTopics returns a pattern matching every Door Sentinel topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: doorsentinel/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
