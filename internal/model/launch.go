package model

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// LaunchPlan is the fully resolved set of parameters for one supervised run.
// It starts mostly empty and is filled in step by step by the boot pipeline:
// workspace provisioning records the data directories, interpreter resolution
// fills Interpreter, and command finalization produces the argv to execute.
//
// Design decision: We accumulate state into a single mutable plan rather than
// having each step return its own result type. The pipeline executes steps in
// a fixed order, and later steps legitimately depend on the output of earlier
// ones (the final command line needs the resolved interpreter path).
type LaunchPlan struct {
	// RunID uniquely identifies this run across restarts.
	// It is generated once per `devserve up` invocation.
	RunID string

	// Profile is the name of the launch profile in use ("api" by default).
	Profile string

	// WorkDir is the project root the child process runs in.
	WorkDir string

	// Interpreter is the absolute path of the resolved virtual-environment
	// interpreter. Empty until the resolution step has run, or when the
	// profile command does not reference the interpreter at all.
	Interpreter string

	// Command is the final argv for the child process. Command[0] is the
	// executable. Populated by the command finalization step.
	Command []string

	// Env holds additional environment variables for the child process,
	// merged over the parent environment at start time.
	Env map[string]string

	// Host and Port are the address the server process is expected to bind.
	// The readiness probe dials this address after each start.
	Host string
	Port int

	// DataDirs lists the workspace directories guaranteed to exist and be
	// writable before launch (data/raw_videos, data/processed, ...).
	DataDirs []string

	// CreatedAt is when the plan was created.
	CreatedAt time.Time
}

// NewLaunchPlan creates a LaunchPlan for the named profile with a fresh
// run ID. The remaining fields are populated by the boot pipeline.
func NewLaunchPlan(profile string) *LaunchPlan {
	return &LaunchPlan{
		RunID:     uuid.NewString(),
		Profile:   profile,
		Env:       make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// Addr returns the host:port address the child process should bind.
func (p *LaunchPlan) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ProbeAddr returns the address the readiness probe should dial.
// A child bound to the wildcard address is reachable via loopback.
func (p *LaunchPlan) ProbeAddr() string {
	host := p.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(p.Port))
}
