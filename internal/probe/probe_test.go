package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   string
	}{
		{StatusReady, "ready"},
		{StatusTimeout, "timeout"},
		{StatusCancelled, "cancelled"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.status.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	t.Run("listening port is ready immediately", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()

		status := WaitReady(context.Background(), ln.Addr().String(), 10*time.Millisecond, time.Second)
		if status != StatusReady {
			t.Errorf("expected StatusReady, got %v", status)
		}
	})

	t.Run("closed port times out", func(t *testing.T) {
		t.Parallel()

		// Bind and release a port so nothing listens on it
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		status := WaitReady(context.Background(), addr, 10*time.Millisecond, 100*time.Millisecond)
		if status != StatusTimeout {
			t.Errorf("expected StatusTimeout, got %v", status)
		}
	})

	t.Run("port becoming ready during the wait is detected", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		// Rebind the same port shortly after the wait starts
		go func() {
			time.Sleep(50 * time.Millisecond)
			late, err := net.Listen("tcp", addr)
			if err != nil {
				return // port was reused by another test; timeout branch covers it
			}
			defer late.Close()
			time.Sleep(2 * time.Second)
		}()

		status := WaitReady(context.Background(), addr, 10*time.Millisecond, 2*time.Second)
		if status != StatusReady {
			t.Errorf("expected StatusReady, got %v", status)
		}
	})

	t.Run("cancelled context stops the wait", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := WaitReady(ctx, addr, 10*time.Millisecond, time.Minute)
		if status != StatusCancelled {
			t.Errorf("expected StatusCancelled, got %v", status)
		}
	})
}

func TestPortFree(t *testing.T) {
	t.Parallel()

	t.Run("free port reports true", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		if !PortFree(addr) {
			t.Error("expected released port to be free")
		}
	})

	t.Run("occupied port reports false", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()

		if PortFree(ln.Addr().String()) {
			t.Error("expected occupied port to be busy")
		}
	})
}
