package fingerprint

import (
	"errors"
	"fmt"
)

// Sentinel errors for fingerprint sensor operations.
// Check with errors.Is().
var (
	// ErrNotConnected indicates no sensor connection is established.
	ErrNotConnected = errors.New("fingerprint: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("fingerprint: connection failed")

	// ErrInvalidPacket indicates a malformed frame from the sensor.
	ErrInvalidPacket = errors.New("fingerprint: invalid packet")

	// ErrProtocolDesync indicates the byte stream has lost frame alignment.
	// This is fatal for the connection; the caller must reconnect.
	ErrProtocolDesync = errors.New("fingerprint: protocol desync")

	// ErrNoFinger indicates no finger was on the sensor during capture.
	// Callers poll until a finger arrives or their deadline expires.
	ErrNoFinger = errors.New("fingerprint: no finger detected")

	// ErrNoMatch indicates the captured print matched no stored template.
	ErrNoMatch = errors.New("fingerprint: no matching template")

	// ErrBadPassword indicates the sensor rejected the handshake password.
	ErrBadPassword = errors.New("fingerprint: password rejected")

	// ErrCaptureTimeout indicates the capture window elapsed without a
	// usable fingerprint.
	ErrCaptureTimeout = errors.New("fingerprint: capture timed out")
)

// DeviceError is returned when the sensor answers with an unexpected
// confirmation code.
type DeviceError struct {
	// Op is the operation that failed (e.g., "GenChar").
	Op string

	// Code is the confirmation code the sensor returned.
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("fingerprint: %s failed with confirmation code 0x%02X", e.Op, e.Code)
}
