// Package fingerprint drives R307-family optical fingerprint sensors.
//
// The sensor speaks a framed binary protocol over a serial line. This
// package expects the serial adapter exposed as a socket (ser2net,
// socat) and connects via tcp:// or unix:// URLs.
//
// # Layers
//
//   - Packet: wire frame encode/decode with checksum verification
//   - Driver: command/ack exchanges with per-call deadlines
//   - Sensor: the capture/enroll/delete surface consumed by the rest
//     of the system, implemented by DeviceSensor (hardware) and
//     SimSensor (in-memory)
//
// # Error Model
//
// The driver never retries; callers own retry policy. A corrupted
// stream (bad header, implausible length) is unrecoverable because
// frame alignment is lost, so the driver drops the connection and
// reports ErrProtocolDesync.
package fingerprint
