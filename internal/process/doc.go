// Package process provides generic subprocess lifecycle management.
//
// Door Sentinel uses it to supervise the serial adapter (ser2net or
// socat) that exposes the fingerprint sensor's UART as a local socket,
// but the manager itself is protocol-agnostic.
//
// Features:
//   - Start/stop subprocess with graceful shutdown
//   - Automatic restart on failure with configurable backoff
//   - Health monitoring and status reporting
//   - Log capture from subprocess stdout/stderr
//   - Context-based cancellation for clean shutdown
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:              "ser2net",
//	    Binary:            "/usr/sbin/ser2net",
//	    Args:              []string{"-n", "-C", "5000:raw:0:/dev/ttyUSB0:57600"},
//	    RestartOnFailure:  true,
//	    RestartDelay:      5 * time.Second,
//	    MaxRestartAttempts: 10,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
