package fingerprint

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"
)

// Default timeouts for sensor communication.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial
	// connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultOpTimeout bounds a single command/ack exchange.
	defaultOpTimeout = 5 * time.Second

	// imagePollInterval is the pause between capture attempts while
	// waiting for a finger.
	imagePollInterval = 50 * time.Millisecond
)

// DriverConfig holds sensor connection configuration.
type DriverConfig struct {
	// Connection is the sensor transport URL. The serial adapter is
	// expected to be exposed as a socket (ser2net, socat):
	//   - "tcp://localhost:5000"
	//   - "unix:///run/r307"
	Connection string

	// Address is the module address. Zero means the stock broadcast
	// address 0xFFFFFFFF.
	Address uint32

	// Password is the 32-bit handshake password. Zero on stock sensors.
	Password uint32

	// OpTimeout bounds a single command/ack exchange.
	// Default: 5 seconds.
	OpTimeout time.Duration

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Driver speaks the framed binary protocol to an R307-family sensor.
//
// Thread Safety:
//   - All methods are safe for concurrent use. A mutex serialises
//     command/ack exchanges because the sensor handles one command at
//     a time.
//
// Error Model:
//   - No internal retries. Callers decide retry policy.
//   - ErrProtocolDesync means the stream is corrupted; the driver
//     closes the connection and all further calls fail with
//     ErrNotConnected until Reconnect.
type Driver struct {
	cfg DriverConfig

	mu        sync.Mutex
	conn      net.Conn
	connected bool

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect establishes a connection to the sensor and verifies the
// handshake password.
//
// Parameters:
//   - ctx: Context for cancellation of the initial connection
//   - cfg: Connection configuration
//
// Returns:
//   - *Driver: Connected driver ready for use
//   - error: If connection or password verification fails
func Connect(ctx context.Context, cfg DriverConfig) (*Driver, error) {
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Address == 0 {
		cfg.Address = defaultAddress
	}

	network, address, err := parseConnectionURL(cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial failed: %w", ErrConnectionFailed, err)
	}

	d := &Driver{cfg: cfg, conn: conn, connected: true}

	if err := d.VerifyPassword(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: handshake failed: %w", ErrConnectionFailed, err)
	}

	return d, nil
}

// NewDriver wraps an existing connection without dialing. Used by tests
// and by transports established elsewhere. The password is not verified.
func NewDriver(conn net.Conn, cfg DriverConfig) *Driver {
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if cfg.Address == 0 {
		cfg.Address = defaultAddress
	}
	return &Driver{cfg: cfg, conn: conn, connected: true}
}

// parseConnectionURL parses a sensor connection URL into network and address.
func parseConnectionURL(connURL string) (network, address string, err error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "unix":
		return "unix", u.Path, nil
	case "tcp":
		if u.Host == "" {
			return "", "", fmt.Errorf("tcp URL missing host")
		}
		return "tcp", u.Host, nil
	default:
		return "", "", fmt.Errorf("unsupported scheme %q (use unix or tcp)", u.Scheme)
	}
}

// SetLogger sets the logger for this driver.
func (d *Driver) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

// IsConnected returns true if the driver holds a live connection.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Close closes the sensor connection. Safe to call multiple times.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

// VerifyPassword confirms the handshake password with the sensor.
func (d *Driver) VerifyPassword(ctx context.Context) error {
	pkt := commandPacket(d.cfg.Address, cmdVerifyPassword, be32(d.cfg.Password)...)
	ack, err := d.exchange(ctx, pkt)
	if err != nil {
		return err
	}
	switch ack[0] {
	case ackOK:
		return nil
	case ackBadPassword:
		return ErrBadPassword
	default:
		return &DeviceError{Op: "VerifyPassword", Code: ack[0]}
	}
}

// GetImage captures the current sensor image into the image buffer.
// Returns ErrNoFinger when nothing is on the window.
func (d *Driver) GetImage(ctx context.Context) error {
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdGetImage))
	if err != nil {
		return err
	}
	switch ack[0] {
	case ackOK:
		return nil
	case ackNoFinger:
		return ErrNoFinger
	default:
		return &DeviceError{Op: "GetImage", Code: ack[0]}
	}
}

// GenChar converts the captured image into a character file in the
// given buffer (1 or 2).
func (d *Driver) GenChar(ctx context.Context, buffer byte) error {
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdGenChar, buffer))
	if err != nil {
		return err
	}
	if ack[0] != ackOK {
		return &DeviceError{Op: "GenChar", Code: ack[0]}
	}
	return nil
}

// RegModel merges character buffers 1 and 2 into a template.
func (d *Driver) RegModel(ctx context.Context) error {
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdRegModel))
	if err != nil {
		return err
	}
	if ack[0] != ackOK {
		return &DeviceError{Op: "RegModel", Code: ack[0]}
	}
	return nil
}

// Store writes the template from the given buffer into a library slot.
func (d *Driver) Store(ctx context.Context, buffer byte, slot uint16) error {
	hi, lo := be16(slot)
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdStore, buffer, hi, lo))
	if err != nil {
		return err
	}
	if ack[0] != ackOK {
		return &DeviceError{Op: "Store", Code: ack[0]}
	}
	return nil
}

// DeleteChar removes count templates starting at the given slot.
func (d *Driver) DeleteChar(ctx context.Context, slot, count uint16) error {
	sHi, sLo := be16(slot)
	cHi, cLo := be16(count)
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdDeleteChar, sHi, sLo, cHi, cLo))
	if err != nil {
		return err
	}
	if ack[0] != ackOK {
		return &DeviceError{Op: "DeleteChar", Code: ack[0]}
	}
	return nil
}

// Search matches the character file in the given buffer against the
// library range. Returns the matching slot and score, or ErrNoMatch.
func (d *Driver) Search(ctx context.Context, buffer byte, start, count uint16) (slot, score uint16, err error) {
	sHi, sLo := be16(start)
	cHi, cLo := be16(count)
	ack, err := d.exchange(ctx, commandPacket(d.cfg.Address, cmdSearch, buffer, sHi, sLo, cHi, cLo))
	if err != nil {
		return 0, 0, err
	}
	switch ack[0] {
	case ackOK:
		if len(ack) < 5 {
			return 0, 0, fmt.Errorf("%w: search ack too short (%d bytes)", ErrInvalidPacket, len(ack))
		}
		return binary.BigEndian.Uint16(ack[1:3]), binary.BigEndian.Uint16(ack[3:5]), nil
	case ackNoMatch:
		return 0, 0, ErrNoMatch
	default:
		return 0, 0, &DeviceError{Op: "Search", Code: ack[0]}
	}
}

// exchange sends a command frame and reads the ack frame. The returned
// slice is the ack payload, always at least one confirmation byte.
func (d *Driver) exchange(ctx context.Context, pkt Packet) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected || d.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(d.cfg.OpTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := d.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := d.conn.Write(pkt.Encode()); err != nil {
		d.dropConnLocked()
		return nil, fmt.Errorf("write command: %w", err)
	}

	ack, err := d.readPacketLocked()
	if err != nil {
		return nil, err
	}

	if ack.ID != packetAck {
		d.dropConnLocked()
		return nil, fmt.Errorf("%w: expected ack packet, got ID 0x%02X", ErrProtocolDesync, ack.ID)
	}
	if len(ack.Payload) == 0 {
		d.dropConnLocked()
		return nil, fmt.Errorf("%w: empty ack payload", ErrInvalidPacket)
	}

	return ack.Payload, nil
}

// readPacketLocked reads one complete frame from the connection.
// Must be called with d.mu held.
func (d *Driver) readPacketLocked() (Packet, error) {
	preamble := make([]byte, preambleSize)
	if _, err := io.ReadFull(d.conn, preamble); err != nil {
		d.dropConnLocked()
		return Packet{}, fmt.Errorf("read preamble: %w", err)
	}

	if binary.BigEndian.Uint16(preamble[0:2]) != headerWord {
		// Frame alignment is lost; there is no safe way to resync a
		// byte stream with unknown garbage in it. Drop the connection.
		d.dropConnLocked()
		d.logError("bad frame header, dropping connection", ErrProtocolDesync)
		return Packet{}, ErrProtocolDesync
	}

	length := binary.BigEndian.Uint16(preamble[7:9])
	if length < checksumSize || length > maxPayloadSize+checksumSize {
		d.dropConnLocked()
		d.logError("implausible frame length, dropping connection", ErrProtocolDesync)
		return Packet{}, fmt.Errorf("%w: frame length %d", ErrProtocolDesync, length)
	}

	rest := make([]byte, int(length))
	if _, err := io.ReadFull(d.conn, rest); err != nil {
		d.dropConnLocked()
		return Packet{}, fmt.Errorf("read frame body: %w", err)
	}

	frame := append(preamble, rest...) //nolint:gocritic // new buffer each read
	return ParsePacket(frame)
}

// dropConnLocked closes and discards the connection after a fatal
// error. Must be called with d.mu held.
func (d *Driver) dropConnLocked() {
	d.connected = false
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// logError logs an error message if a logger is set.
func (d *Driver) logError(msg string, err error) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
