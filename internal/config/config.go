package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values mirror the development posture of the server container:
// bind all interfaces on port 8000 with auto-reload enabled.
const (
	// DefaultHost binds all interfaces so the server is reachable from
	// outside a container. Development posture only; production deployments
	// front this with a real reverse proxy.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the TCP port the server process listens on.
	// Port 8000 is the declared container port and the uvicorn default.
	DefaultPort = 8000

	// DefaultProfile is the launch profile used when none is named.
	DefaultProfile = "api"

	// DefaultDataDir is the workspace root for video data, relative to
	// the project directory. The raw_videos, processed, and thumbnails
	// subdirectories live under it.
	DefaultDataDir = "data"

	// DefaultReadyTimeout bounds how long the readiness probe waits for
	// the server port to accept connections after a start. Application
	// startup loads models and opens database connections, so this is
	// generous rather than snappy.
	DefaultReadyTimeout = 60 * time.Second

	// DefaultReadyInterval is the delay between readiness probe dials.
	DefaultReadyInterval = 250 * time.Millisecond

	// DefaultGraceTimeout is how long a stopping child gets between
	// SIGTERM and SIGKILL. Long enough for in-flight requests to drain.
	DefaultGraceTimeout = 10 * time.Second

	// DefaultDebounce coalesces bursts of file events into one reload.
	// Editors produce several writes per save; a restart per write would
	// thrash the server.
	DefaultDebounce = 400 * time.Millisecond

	// DefaultRestartLimit caps automatic crash restarts per run.
	// A crash-looping server should fail visibly, not cycle forever.
	DefaultRestartLimit = 5

	// DefaultBackoffBase is the initial delay before a crash restart.
	// The delay doubles per consecutive crash up to the restart limit.
	DefaultBackoffBase = time.Second

	// DefaultMetricsPort serves the supervisor's /metrics, /healthz, and
	// /status endpoints. Distinct from the application port so the probe
	// surface survives application restarts. Zero disables the sidecar.
	DefaultMetricsPort = 8090

	// AppName is the application name used for XDG directory paths.
	AppName = "devserve"
)

// DefaultWatchExtensions returns the file extensions that trigger a reload.
// Source files only; data and logs churn constantly and must not restart
// the server.
func DefaultWatchExtensions() []string {
	return []string{".py"}
}

// Config holds all configuration options for devserve.
// This struct is designed to be populated from CLI flags, environment
// variables, and the project config file, then passed through the
// application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., WatchConfig, SupervisorConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit. If the configuration grows significantly, consider
// refactoring into sub-structs.
type Config struct {
	// Profile is the name of the launch profile to run.
	Profile string

	// WorkDir is the project root directory. The child process runs here
	// and relative paths (data dir, venv, watch paths) resolve against it.
	WorkDir string

	// Host is the interface the server process binds.
	Host string `env:"DEVSERVE_HOST"`

	// Port is the TCP port the server process binds.
	Port int `env:"DEVSERVE_PORT"`

	// DataDir is the workspace root for video data, relative to WorkDir
	// unless absolute.
	DataDir string `env:"DEVSERVE_DATA_DIR"`

	// Command is the argv to supervise. When empty, the default command
	// launches the resolved interpreter with the uvicorn entry point on
	// Host:Port.
	Command []string

	// Reload enables watch-and-restart on source changes.
	// On by default; this is a development tool.
	Reload bool `env:"DEVSERVE_RELOAD"`

	// WatchPaths are the directories watched for changes, relative to
	// WorkDir unless absolute. Defaults to the project root.
	WatchPaths []string

	// WatchExtensions restricts reloads to files with these extensions.
	// An empty list reloads on any file change.
	WatchExtensions []string

	// IgnorePatterns are glob patterns (matched against the path relative
	// to WorkDir) excluded from watching. The data and venv trees are
	// always ignored regardless of this list.
	IgnorePatterns []string

	// Debounce coalesces file events occurring within this window into a
	// single reload.
	Debounce time.Duration

	// ReadyTimeout bounds the post-start readiness probe.
	ReadyTimeout time.Duration `env:"DEVSERVE_READY_TIMEOUT"`

	// ReadyInterval is the delay between readiness probe attempts.
	ReadyInterval time.Duration

	// GraceTimeout is the TERM-to-KILL window when stopping the child.
	GraceTimeout time.Duration `env:"DEVSERVE_GRACE_TIMEOUT"`

	// RestartLimit caps consecutive crash restarts. Zero disables
	// automatic crash recovery entirely.
	RestartLimit int `env:"DEVSERVE_RESTART_LIMIT"`

	// BackoffBase is the initial crash restart delay, doubled per
	// consecutive crash.
	BackoffBase time.Duration

	// MetricsPort is the port for the supervisor's metrics/health sidecar.
	// Zero disables it.
	MetricsPort int `env:"DEVSERVE_METRICS_PORT"`

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .devserve.yaml in the work directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Profiles holds the launch profiles loaded from the config file.
	Profiles *File

	// HistoryDir is the directory for the run history database.
	// Defaults to the XDG data directory. Empty disables history.
	HistoryDir string `env:"DEVSERVE_HISTORY_DIR"`

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., port, timeouts).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Profile:         DefaultProfile,
		Host:            DefaultHost,
		Port:            DefaultPort,
		DataDir:         DefaultDataDir,
		Reload:          true,
		WatchExtensions: DefaultWatchExtensions(),
		Debounce:        DefaultDebounce,
		ReadyTimeout:    DefaultReadyTimeout,
		ReadyInterval:   DefaultReadyInterval,
		GraceTimeout:    DefaultGraceTimeout,
		RestartLimit:    DefaultRestartLimit,
		BackoffBase:     DefaultBackoffBase,
		MetricsPort:     DefaultMetricsPort,
		HistoryDir:      XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for devserve.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/devserve
// On macOS: ~/Library/Application Support/devserve
// On Windows: %LOCALAPPDATA%\devserve
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for devserve.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for devserve.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any process is launched.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return ErrInvalidMetricsPort
	}

	// The sidecar cannot share the application's port
	if c.MetricsPort != 0 && c.MetricsPort == c.Port {
		return ErrPortConflict
	}

	// Timeouts must be positive; zero would make probes fire immediately
	// or stops hang forever
	if c.ReadyTimeout <= 0 {
		return ErrInvalidReadyTimeout
	}
	if c.GraceTimeout <= 0 {
		return ErrInvalidGraceTimeout
	}

	// Debounce of zero is valid (reload on every event); negative is not
	if c.Debounce < 0 {
		return ErrInvalidDebounce
	}

	// RestartLimit of zero is valid (no crash recovery); negative is not
	if c.RestartLimit < 0 {
		return ErrInvalidRestartLimit
	}

	if c.BackoffBase < 0 {
		return ErrInvalidBackoff
	}

	return nil
}
