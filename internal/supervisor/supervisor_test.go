package supervisor

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/cricv/devserve/internal/model"
	"github.com/cricv/devserve/internal/watcher"
)

// eventRecorder collects lifecycle events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []*model.RunEvent
}

func (r *eventRecorder) observe(ev *model.RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(typ model.EventType) []*model.RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.RunEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// shellPlan builds a LaunchPlan running a shell snippet.
// Tests drive real child processes; there is no useful way to fake process
// exit semantics.
func shellPlan(t *testing.T, script string) *model.LaunchPlan {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}

	plan := model.NewLaunchPlan("test")
	plan.Command = []string{"sh", "-c", script}
	plan.WorkDir = t.TempDir()
	return plan
}

func TestRunNoCommand(t *testing.T) {
	t.Parallel()

	plan := model.NewLaunchPlan("test")
	s := New(plan, WithOutput(io.Discard, io.Discard))

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrNoCommand) {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}

func TestRunCleanExit(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s := New(shellPlan(t, "exit 0"),
		WithOutput(io.Discard, io.Discard),
		WithObserver(rec.observe),
	)

	code, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}

	if got := len(rec.ofType(model.EventStart)); got != 1 {
		t.Errorf("expected 1 start event, got %d", got)
	}
	stops := rec.ofType(model.EventStop)
	if len(stops) != 1 || stops[0].Detail != "exited cleanly" {
		t.Errorf("expected one clean-exit stop event, got %v", stops)
	}
}

func TestRunCrashRestartsUpToLimit(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s := New(shellPlan(t, "exit 3"),
		WithOutput(io.Discard, io.Discard),
		WithObserver(rec.observe),
		WithRestartLimit(2),
		WithBackoffBase(time.Millisecond),
	)

	code, err := s.Run(context.Background())
	if !errors.Is(err, ErrRestartLimit) {
		t.Fatalf("expected ErrRestartLimit, got %v", err)
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}

	// Limit 2 means: initial attempt + 2 restarts = 3 crashes
	if got := len(rec.ofType(model.EventCrash)); got != 3 {
		t.Errorf("expected 3 crash events, got %d", got)
	}
	if got := len(rec.ofType(model.EventStart)); got != 3 {
		t.Errorf("expected 3 start events, got %d", got)
	}
}

func TestRunRestartLimitZeroDisablesRecovery(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s := New(shellPlan(t, "exit 1"),
		WithOutput(io.Discard, io.Discard),
		WithObserver(rec.observe),
		WithRestartLimit(0),
		WithBackoffBase(time.Millisecond),
	)

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrRestartLimit) {
		t.Fatalf("expected ErrRestartLimit, got %v", err)
	}
	if got := len(rec.ofType(model.EventStart)); got != 1 {
		t.Errorf("expected a single start, got %d", got)
	}
}

func TestRunShutdownOnContextCancel(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s := New(shellPlan(t, "sleep 30"),
		WithOutput(io.Discard, io.Discard),
		WithObserver(rec.observe),
		WithGraceTimeout(2*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = s.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not shut down after cancel")
	}
	if runErr != nil {
		t.Errorf("expected graceful shutdown without error, got %v", runErr)
	}

	stops := rec.ofType(model.EventStop)
	if len(stops) != 1 || stops[0].Detail != "shutdown requested" {
		t.Errorf("expected one shutdown stop event, got %v", stops)
	}
}

func TestRunReloadRestartsChild(t *testing.T) {
	t.Parallel()

	reloads := make(chan watcher.Event, 1)
	rec := &eventRecorder{}
	s := New(shellPlan(t, "sleep 30"),
		WithOutput(io.Discard, io.Discard),
		WithObserver(rec.observe),
		WithReloads(reloads),
		WithGraceTimeout(2*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Run(ctx) //nolint:errcheck // Shutdown path is asserted via events
	}()

	// Let the first child start, then trigger a reload
	time.Sleep(200 * time.Millisecond)
	reloads <- watcher.Event{Path: "app/main.py", Op: "WRITE"}

	// Wait until the restarted child is up, then shut down
	deadline := time.After(10 * time.Second)
	for len(rec.ofType(model.EventStart)) < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reload restart")
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := len(rec.ofType(model.EventStart)); got != 2 {
		t.Errorf("expected 2 start events, got %d", got)
	}
	relEvents := rec.ofType(model.EventReload)
	if len(relEvents) != 1 || relEvents[0].Detail != "app/main.py" {
		t.Errorf("expected one reload event for app/main.py, got %v", relEvents)
	}
}

func TestRunCommandNotFound(t *testing.T) {
	t.Parallel()

	plan := model.NewLaunchPlan("test")
	plan.Command = []string{"devserve-no-such-binary"}
	plan.WorkDir = t.TempDir()

	s := New(plan, WithOutput(io.Discard, io.Discard))
	_, err := s.Run(context.Background())
	if err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	t.Run("nil error is zero", func(t *testing.T) {
		t.Parallel()
		if got := exitCode(nil); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("non-exit error is -1", func(t *testing.T) {
		t.Parallel()
		if got := exitCode(errors.New("boom")); got != -1 {
			t.Errorf("expected -1, got %d", got)
		}
	})
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    time.Duration
		crashes int
		want    time.Duration
	}{
		{"first crash uses the base", time.Second, 1, time.Second},
		{"second crash doubles", time.Second, 2, 2 * time.Second},
		{"fourth crash", time.Second, 4, 8 * time.Second},
		{"long crash streaks stay capped", time.Second, 40, maxBackoff},
		{"cap survives overflow-range streaks", time.Second, 500, maxBackoff},
		{"zero base stays zero", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := backoffDelay(tt.base, tt.crashes)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got < 0 {
				t.Errorf("delay went negative: %v", got)
			}
		})
	}
}
