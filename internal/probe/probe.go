package probe

import (
	"context"
	"net"
	"time"
)

// Status represents the outcome of a readiness wait.
// This enum allows for easy status reporting and programmatic handling
// of different port states.
type Status int

const (
	// StatusReady indicates the port accepted a TCP connection.
	StatusReady Status = iota

	// StatusTimeout indicates the port never accepted a connection within
	// the configured window. The server may still be starting, or it may
	// have failed before binding.
	StatusTimeout

	// StatusCancelled indicates the wait was cancelled via context.
	StatusCancelled
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusTimeout:
		return "timeout"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// dialTimeout bounds each individual connection attempt.
// Local dials either succeed or get refused almost instantly; the bound
// exists for pathological cases (firewalled ports that drop packets).
const dialTimeout = time.Second

// WaitReady dials addr repeatedly until a connection is accepted, the
// timeout elapses, or the context is cancelled. Successful connections are
// closed immediately: the probe confirms the listener exists, nothing more.
//
// Design decision: We probe at TCP level rather than HTTP because the
// supervised command is configurable. A worker profile may not speak HTTP
// at all, and a TCP accept is the one observable contract every server
// profile shares (the container declares a port, not a path).
func WaitReady(ctx context.Context, addr string, interval, timeout time.Duration) Status {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return StatusCancelled
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			_ = conn.Close() //nolint:errcheck // Probe connection carries no data
			return StatusReady
		}

		if time.Now().After(deadline) {
			return StatusTimeout
		}

		select {
		case <-ctx.Done():
			return StatusCancelled
		case <-time.After(interval):
		}
	}
}

// PortFree reports whether addr can be bound right now.
// Used by the preflight checks: launching a server onto an occupied port
// would fail with a less helpful error from deep inside the application.
func PortFree(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close() //nolint:errcheck // Listener existed only to test bindability
	return true
}
