package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrInvalidPort is returned when the server port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidMetricsPort is returned when the metrics sidecar port is
	// outside 0-65535. Zero is valid and disables the sidecar.
	ErrInvalidMetricsPort = errors.New("invalid metrics port: must be between 0 and 65535 (0 disables)")

	// ErrPortConflict is returned when the metrics sidecar port equals the
	// server port. Both listeners cannot share one port.
	ErrPortConflict = errors.New("port conflict: metrics port must differ from server port")

	// ErrInvalidReadyTimeout is returned when the readiness timeout is not
	// positive. A zero timeout would declare every start failed.
	ErrInvalidReadyTimeout = errors.New("invalid ready timeout: must be positive")

	// ErrInvalidGraceTimeout is returned when the grace timeout is not
	// positive. A zero grace window would SIGKILL the child immediately.
	ErrInvalidGraceTimeout = errors.New("invalid grace timeout: must be positive")

	// ErrInvalidDebounce is returned when the debounce window is negative.
	// Use 0 to reload on every file event.
	ErrInvalidDebounce = errors.New("invalid debounce: must be non-negative")

	// ErrInvalidRestartLimit is returned when the restart limit is negative.
	// Use 0 to disable automatic crash recovery.
	ErrInvalidRestartLimit = errors.New("invalid restart limit: must be non-negative")

	// ErrInvalidBackoff is returned when the backoff base is negative.
	ErrInvalidBackoff = errors.New("invalid backoff base: must be non-negative")

	// ErrUnknownProfile is returned when the requested launch profile does
	// not exist in the configuration file.
	ErrUnknownProfile = errors.New("unknown profile: not defined in configuration file")
)
