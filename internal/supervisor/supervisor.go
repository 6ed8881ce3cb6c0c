package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cricv/devserve/internal/model"
	"github.com/cricv/devserve/internal/probe"
	"github.com/cricv/devserve/internal/watcher"
)

// Observer receives lifecycle events as they happen.
// Observers must not block; slow consumers would stall supervision.
type Observer func(*model.RunEvent)

// Supervisor runs one launch plan as a managed child process.
type Supervisor struct {
	// plan is the resolved launch plan being supervised.
	plan *model.LaunchPlan

	// logger is used for structured logging.
	logger *slog.Logger

	// grace is the TERM-to-KILL window when stopping the child.
	grace time.Duration

	// restartLimit caps consecutive crash restarts. Zero disables crash
	// recovery: the first unexpected exit ends the run.
	restartLimit int

	// backoffBase is the initial crash restart delay. The delay doubles
	// per consecutive crash, capped at maxBackoff.
	backoffBase time.Duration

	// reloads delivers debounced file-change events. Nil disables
	// reload-triggered restarts.
	reloads <-chan watcher.Event

	// readyTimeout and readyInterval configure the post-start readiness
	// probe. A zero timeout disables probing.
	readyTimeout  time.Duration
	readyInterval time.Duration

	// observers receive lifecycle events.
	observers []Observer

	// stdout and stderr receive the child's output.
	stdout io.Writer
	stderr io.Writer
}

// Option is a function that configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets a custom logger for the supervisor.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithGraceTimeout sets the TERM-to-KILL window for stops.
func WithGraceTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithRestartLimit caps consecutive crash restarts.
func WithRestartLimit(n int) Option {
	return func(s *Supervisor) {
		if n >= 0 {
			s.restartLimit = n
		}
	}
}

// WithBackoffBase sets the initial crash restart delay.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Supervisor) {
		if d >= 0 {
			s.backoffBase = d
		}
	}
}

// WithReloads wires the debounced file-change channel into the supervisor.
func WithReloads(ch <-chan watcher.Event) Option {
	return func(s *Supervisor) {
		s.reloads = ch
	}
}

// WithReadyProbe enables the post-start TCP readiness probe.
func WithReadyProbe(timeout, interval time.Duration) Option {
	return func(s *Supervisor) {
		s.readyTimeout = timeout
		s.readyInterval = interval
	}
}

// WithObserver registers a lifecycle event observer.
func WithObserver(obs Observer) Option {
	return func(s *Supervisor) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// WithOutput redirects the child's stdout and stderr.
// Defaults to the supervisor process's own stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// New creates a Supervisor for the given launch plan.
func New(plan *model.LaunchPlan, opts ...Option) *Supervisor {
	s := &Supervisor{
		plan:          plan,
		grace:         10 * time.Second,
		restartLimit:  5,
		backoffBase:   time.Second,
		readyInterval: 250 * time.Millisecond,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Run supervises the child process until the context is cancelled, the
// child exits cleanly, or the crash restart budget is exhausted.
// It returns the final exit code of the child process.
//
// Design decision: Context cancellation is the single shutdown path.
// Signal handling stays in the command layer; the supervisor only needs
// one way to learn it should stop, and tests get to drive shutdown
// without sending real signals.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	if len(s.plan.Command) == 0 {
		return 0, ErrNoCommand
	}

	crashes := 0

	for {
		cmd, waitCh, err := s.start()
		if err != nil {
			return 0, err
		}

		// Confirm readiness in the background; a restart or shutdown
		// during the probe cancels it via probeCtx.
		probeCtx, probeCancel := context.WithCancel(ctx)
		if s.readyTimeout > 0 {
			go s.confirmReady(probeCtx)
		}

		select {
		case <-ctx.Done():
			probeCancel()
			code := s.stop(cmd, waitCh)
			s.emit(model.EventStop, "shutdown requested")
			s.logger.Info("process stopped",
				"runID", s.plan.RunID,
				"exitCode", code,
			)
			return code, nil

		case ev := <-s.reloads:
			probeCancel()
			s.emit(model.EventReload, ev.Path)
			s.logger.Info("source change detected, restarting",
				"path", ev.Path,
				"op", ev.Op,
			)
			s.stop(cmd, waitCh)
			// A successful reload restart resets the crash counter:
			// the new code gets a fresh budget
			crashes = 0
			continue

		case waitErr := <-waitCh:
			probeCancel()
			code := exitCode(waitErr)

			if waitErr == nil {
				// Deliberate clean exit (one-shot profiles such as
				// management scripts end this way)
				s.emit(model.EventStop, "exited cleanly")
				s.logger.Info("process exited cleanly", "runID", s.plan.RunID)
				return 0, nil
			}

			crashes++
			s.emit(model.EventCrash, fmt.Sprintf("exit code %d", code))
			s.logger.Error("process crashed",
				"runID", s.plan.RunID,
				"exitCode", code,
				"consecutiveCrashes", crashes,
			)

			if crashes > s.restartLimit {
				return code, fmt.Errorf("%w (%d consecutive crashes)", ErrRestartLimit, crashes)
			}

			// Exponential backoff before the next attempt
			delay := backoffDelay(s.backoffBase, crashes)
			s.logger.Warn("restarting after crash",
				"attempt", crashes,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return code, nil
			case <-time.After(delay):
			}
		}
	}
}

// start launches the child process and begins waiting on it.
// The child's lifetime is managed by stop() rather than CommandContext,
// which would hard-kill without the TERM-first grace window.
func (s *Supervisor) start() (*exec.Cmd, chan error, error) {
	argv := s.plan.Command

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // Supervising a user-configured command is the point
	cmd.Dir = s.plan.WorkDir
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.Env = mergedEnv(s.plan.Env)

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	s.emit(model.EventStart, argv[0])
	s.logger.Info("process started",
		"runID", s.plan.RunID,
		"pid", cmd.Process.Pid,
		"command", argv[0],
	)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	return cmd, waitCh, nil
}

// stop terminates the child gracefully: SIGTERM first, SIGKILL once the
// grace window elapses. Returns the child's exit code.
func (s *Supervisor) stop(cmd *exec.Cmd, waitCh chan error) int {
	if cmd.Process == nil {
		return 0
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Signal delivery fails if the process already exited, and is
		// unsupported on some platforms; fall back to a hard kill path
		s.logger.Debug("SIGTERM delivery failed", "error", err)
	}

	select {
	case waitErr := <-waitCh:
		return exitCode(waitErr)
	case <-time.After(s.grace):
		s.logger.Warn("process ignored SIGTERM, killing",
			"pid", cmd.Process.Pid,
			"grace", s.grace,
		)
		_ = cmd.Process.Kill() //nolint:errcheck // Process may have exited in the race window
		return exitCode(<-waitCh)
	}
}

// confirmReady probes the plan's address and reports the outcome.
func (s *Supervisor) confirmReady(ctx context.Context) {
	started := time.Now()
	status := probe.WaitReady(ctx, s.plan.ProbeAddr(), s.readyInterval, s.readyTimeout)

	switch status {
	case probe.StatusReady:
		elapsed := time.Since(started).Round(time.Millisecond)
		s.emit(model.EventReady, elapsed.String())
		s.logger.Info("server ready",
			"addr", s.plan.ProbeAddr(),
			"elapsed", elapsed,
		)
	case probe.StatusTimeout:
		s.logger.Warn("server did not become ready in time",
			"addr", s.plan.ProbeAddr(),
			"timeout", s.readyTimeout,
		)
	case probe.StatusCancelled:
		// Restart or shutdown interrupted the probe; nothing to report
	}
}

// emit delivers a lifecycle event to all observers.
func (s *Supervisor) emit(typ model.EventType, detail string) {
	ev := model.NewRunEvent(s.plan.RunID, typ, detail)
	for _, obs := range s.observers {
		obs(ev)
	}
}

// mergedEnv layers the plan's environment variables over the parent
// environment.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return os.Environ()
	}

	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// maxBackoff caps the crash restart delay. Without a cap the doubling
// shift overflows time.Duration after enough consecutive crashes, turning
// the backoff into an immediate hot restart loop.
const maxBackoff = time.Minute

// backoffDelay returns the delay before restart attempt n (1-based).
func backoffDelay(base time.Duration, crashes int) time.Duration {
	if base <= 0 {
		return 0
	}
	for i := 1; i < crashes; i++ {
		base *= 2
		if base >= maxBackoff {
			return maxBackoff
		}
	}
	return base
}

// exitCode extracts the process exit code from a Wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
