package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cricv/devserve/internal/model"
	"github.com/cricv/devserve/internal/probe"
	"github.com/cricv/devserve/internal/venv"
	"github.com/cricv/devserve/internal/workspace"
)

// DefaultAppModule is the ASGI entry point launched when a profile does
// not configure its own command. Matches the container's startup command.
const DefaultAppModule = "app.main:app"

// interpreterAliases are argv[0] values in configured commands that are
// rewritten to the resolved virtual-environment interpreter. This keeps
// profile commands portable: "python -m app.workers.tasks" runs inside the
// project environment, not whatever python happens to be on PATH.
var interpreterAliases = map[string]bool{
	"python":  true,
	"python3": true,
}

// ErrPortBusy is returned by the port preflight when the server port is
// already bound.
var ErrPortBusy = errors.New("server port is already in use")

// WorkspaceStep provisions the data directory layout and verifies it is
// writable before anything is launched.
type WorkspaceStep struct {
	// WorkDir is the project root.
	WorkDir string

	// DataDir is the data root, relative to WorkDir unless absolute.
	DataDir string
}

// Name returns the step name.
func (s *WorkspaceStep) Name() string { return "workspace" }

// Do creates the data directories and verifies writability.
func (s *WorkspaceStep) Do(_ context.Context, plan *model.LaunchPlan) error {
	layout := workspace.NewLayout(s.WorkDir, s.DataDir)

	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("workspace provisioning failed: %w", err)
	}
	if err := layout.CheckWritable(); err != nil {
		return fmt.Errorf("workspace verification failed: %w", err)
	}

	plan.DataDirs = layout.Dirs()
	return nil
}

// InterpreterStep resolves the project's virtual-environment interpreter.
type InterpreterStep struct {
	// WorkDir is the project root probed for venv/.venv.
	WorkDir string

	// Optional skips the step silently when no environment exists.
	// Profiles with a fully explicit command that does not reference the
	// interpreter can run without one.
	Optional bool
}

// Name returns the step name.
func (s *InterpreterStep) Name() string { return "interpreter" }

// Do resolves the interpreter and records it on the plan.
func (s *InterpreterStep) Do(_ context.Context, plan *model.LaunchPlan) error {
	interp, err := venv.Resolve(s.WorkDir)
	if err != nil {
		if s.Optional && errors.Is(err, venv.ErrNotFound) {
			return nil
		}
		return err
	}

	plan.Interpreter = interp.Path
	return nil
}

// PortStep verifies the server port can be bound.
// Skipped for plans without a port (worker profiles).
type PortStep struct{}

// Name returns the step name.
func (s *PortStep) Name() string { return "port" }

// Do checks the plan's bind address for availability.
func (s *PortStep) Do(_ context.Context, plan *model.LaunchPlan) error {
	if plan.Port == 0 {
		return nil
	}
	if !probe.PortFree(plan.Addr()) {
		return fmt.Errorf("%w: %s", ErrPortBusy, plan.Addr())
	}
	return nil
}

// CommandStep finalizes the argv the supervisor will execute.
type CommandStep struct {
	// Command is the configured argv. Empty means build the default
	// uvicorn command from the resolved interpreter.
	Command []string

	// AppModule is the ASGI entry point for the default command.
	// Empty means DefaultAppModule.
	AppModule string
}

// Name returns the step name.
func (s *CommandStep) Name() string { return "command" }

// Do assembles the final command line.
//
// Three cases, in order:
//  1. A configured command whose argv[0] is a python alias runs under the
//     resolved interpreter.
//  2. Any other configured command is used verbatim.
//  3. No configured command builds the default server invocation:
//     <interpreter> -m uvicorn app.main:app --host <host> --port <port>.
func (s *CommandStep) Do(_ context.Context, plan *model.LaunchPlan) error {
	if len(s.Command) > 0 {
		argv := make([]string, len(s.Command))
		copy(argv, s.Command)

		if interpreterAliases[argv[0]] && plan.Interpreter != "" {
			argv[0] = plan.Interpreter
		}

		plan.Command = argv
		return nil
	}

	if plan.Interpreter == "" {
		return venv.ErrNotFound
	}

	module := s.AppModule
	if module == "" {
		module = DefaultAppModule
	}

	plan.Command = []string{
		plan.Interpreter,
		"-m", "uvicorn",
		module,
		"--host", plan.Host,
		"--port", strconv.Itoa(plan.Port),
	}
	return nil
}

// Settings carries the configuration the default boot pipeline needs.
type Settings struct {
	// WorkDir is the project root.
	WorkDir string

	// DataDir is the data root, relative to WorkDir unless absolute.
	DataDir string

	// Command is the configured argv, empty for the default server.
	Command []string

	// AppModule overrides the default ASGI entry point.
	AppModule string
}

// DefaultPipeline assembles the standard boot sequence:
// workspace, interpreter, port preflight, command finalization.
func DefaultPipeline(settings Settings, opts ...Option) *Pipeline {
	p := New(opts...)

	// An explicit non-python command does not require an interpreter
	interpreterOptional := len(settings.Command) > 0 &&
		!interpreterAliases[settings.Command[0]]

	p.AddSteps(
		&WorkspaceStep{WorkDir: settings.WorkDir, DataDir: settings.DataDir},
		&InterpreterStep{WorkDir: settings.WorkDir, Optional: interpreterOptional},
		&PortStep{},
		&CommandStep{Command: settings.Command, AppModule: settings.AppModule},
	)
	return p
}
