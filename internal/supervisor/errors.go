package supervisor

import "errors"

// Supervision errors.
//
// Design decision: We define specific error types rather than wrapping all
// errors generically. This allows callers to distinguish "the command never
// started" from "the command kept crashing" and exit with an appropriate
// message for each.
var (
	// ErrNoCommand is returned when the launch plan carries an empty argv.
	// The boot pipeline normally prevents this; hitting it means the
	// supervisor was invoked with an unfinished plan.
	ErrNoCommand = errors.New("no command to supervise")

	// ErrRestartLimit is returned when the child crashed more times in a
	// row than the configured limit allows. The last crash's exit code
	// accompanies the error in the supervisor's result.
	ErrRestartLimit = errors.New("restart limit exceeded: process keeps crashing")
)
