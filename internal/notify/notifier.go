package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/door-sentinel/internal/authflow"
	"github.com/nerrad567/door-sentinel/internal/door"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broker is the MQTT surface the notifier needs. *mqtt.Client
// satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Metrics is the time-series surface the notifier needs.
// Both *influxdb.Client and *tsdb.Client satisfy it.
type Metrics interface {
	WriteAccessEvent(result, reason string, userID int64, confidence float64)
	WriteDoorTransition(state string)
	WriteSensorHealth(component string, healthy bool)
}

// Notifier fans authentication and door state changes out to MQTT and
// InfluxDB. Either sink may be nil when the deployment runs without it;
// delivery failures are logged and never propagate back into the
// authentication loop.
type Notifier struct {
	broker  Broker
	metrics Metrics
	topics  mqtt.Topics
	qos     byte
	logger  Logger
}

// NewNotifier creates a notifier. broker and metrics may each be nil.
func NewNotifier(broker Broker, metrics Metrics, qos byte) *Notifier {
	return &Notifier{
		broker:  broker,
		metrics: metrics,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// authMessage is the wire form of an orchestrator snapshot.
type authMessage struct {
	authflow.Snapshot
	Timestamp time.Time `json:"timestamp"`
}

// AuthChanged publishes an orchestrator snapshot. Wire as an
// authflow.Engine observer.
//
// The current phase is always published retained to the status topic.
// Session openings additionally go to the session topic, terminal
// decisions to the result topic and the metrics store.
func (n *Notifier) AuthChanged(s authflow.Snapshot) {
	payload, err := json.Marshal(authMessage{Snapshot: s, Timestamp: time.Now().UTC()})
	if err != nil {
		n.logger.Error("marshalling auth snapshot failed", "error", err)
		return
	}

	n.publish(n.topics.AuthStatus(), payload, true)

	switch s.Phase {
	case authflow.PhaseFaceMatched:
		n.publish(n.topics.AuthSession(), payload, false)
	case authflow.PhaseGranted, authflow.PhaseDenied, authflow.PhaseTimeout:
		n.publish(n.topics.AuthResult(), payload, false)
		if n.metrics != nil {
			result, reason := accessResult(s)
			n.metrics.WriteAccessEvent(result, reason, s.UserID, s.Confidence)
		}
	}
}

// accessResult maps a terminal snapshot to a metrics result string.
func accessResult(s authflow.Snapshot) (result, reason string) {
	switch {
	case s.Phase == authflow.PhaseGranted:
		return "SUCCESS", ""
	case s.Phase == authflow.PhaseTimeout:
		return "FAILED", s.Reason
	case s.Reason == authflow.ReasonSensorError:
		return "FAILED", s.Reason
	default:
		return "DENIED", s.Reason
	}
}

// doorMessage is the wire form of a door status.
type doorMessage struct {
	door.Status
	Timestamp time.Time `json:"timestamp"`
}

// DoorChanged publishes a door state transition. Wire as a
// door.Controller observer.
func (n *Notifier) DoorChanged(s door.Status) {
	payload, err := json.Marshal(doorMessage{Status: s, Timestamp: time.Now().UTC()})
	if err != nil {
		n.logger.Error("marshalling door status failed", "error", err)
		return
	}

	n.publish(n.topics.DoorState(), payload, true)

	if n.metrics != nil {
		n.metrics.WriteDoorTransition(string(s.State))
	}
}

// healthMessage is the wire form of a hardware health report.
type healthMessage struct {
	Component string    `json:"component"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorHealth publishes a hardware health report for one component
// ("fingerprint", "camera").
func (n *Notifier) SensorHealth(component string, healthErr error) {
	msg := healthMessage{
		Component: component,
		Healthy:   healthErr == nil,
		Timestamp: time.Now().UTC(),
	}
	if healthErr != nil {
		msg.Error = healthErr.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("marshalling health report failed", "error", err)
		return
	}

	n.publish(n.topics.SensorHealth(), payload, true)

	if n.metrics != nil {
		n.metrics.WriteSensorHealth(component, healthErr == nil)
	}
}

func (n *Notifier) publish(topic string, payload []byte, retained bool) {
	if n.broker == nil {
		return
	}
	if err := n.broker.Publish(topic, payload, n.qos, retained); err != nil {
		n.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

// Locker is the door control surface exposed to remote commands.
// Remote commands can only close the door, never open it.
type Locker interface {
	Lock() error
	EmergencyLock()
}

// SessionCanceller aborts an in-flight authentication session.
type SessionCanceller interface {
	Cancel()
}

// commandMessage is the wire form of a remote door command.
type commandMessage struct {
	Command string `json:"command"`
}

// Remote command names accepted on the door command topic.
const (
	CommandLock          = "lock"
	CommandEmergencyLock = "emergency_lock"
	CommandCancelSession = "cancel_session"
)

// ListenCommands subscribes to the door command topic and dispatches
// lock commands. Returns an error when the subscription fails or no
// broker is configured.
func (n *Notifier) ListenCommands(locker Locker, sessions SessionCanceller) error {
	if n.broker == nil {
		return fmt.Errorf("notify: no broker configured")
	}

	return n.broker.Subscribe(n.topics.DoorCommand(), n.qos, func(topic string, payload []byte) error {
		var msg commandMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("parsing door command: %w", err)
		}

		switch msg.Command {
		case CommandLock:
			n.logger.Info("remote lock command received")
			if err := locker.Lock(); err != nil {
				return fmt.Errorf("remote lock: %w", err)
			}
		case CommandEmergencyLock:
			n.logger.Warn("remote emergency lock command received")
			locker.EmergencyLock()
		case CommandCancelSession:
			n.logger.Info("remote session cancel received")
			if sessions != nil {
				sessions.Cancel()
			}
		default:
			return fmt.Errorf("notify: unknown door command %q", msg.Command)
		}
		return nil
	})
}
