// Package mqtt provides MQTT client connectivity for Door Sentinel.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Door Sentinel uses MQTT to announce authentication sessions, door
// state changes and hardware health to the rest of the site, and to
// accept remote lock commands from site automation. The broker
// (Mosquitto) decouples the door controller from its consumers.
//
//	Door Sentinel ↔ MQTT Broker ↔ Site automation / dashboards
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Accept remote lock commands
//	err = client.Subscribe(mqtt.Topics{}.DoorCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish the door state
//	topic := mqtt.Topics{}.DoorState()
//	client.Publish(topic, []byte(`{"state":"LOCKED"}`), 1, true)
package mqtt
