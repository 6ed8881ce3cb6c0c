package model

import "time"

// EventType classifies a lifecycle event within a supervised run.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed, and is also the value stored in the
// history database so records stay readable with plain SQL.
type EventType int

const (
	// EventStart indicates the child process was started (or restarted).
	EventStart EventType = iota

	// EventReady indicates the readiness probe confirmed the server port
	// is accepting connections.
	EventReady

	// EventReload indicates a source change triggered a restart.
	EventReload

	// EventCrash indicates the child process exited unexpectedly.
	EventCrash

	// EventStop indicates the child process was stopped deliberately,
	// either by shutdown signal or by supervisor teardown.
	EventStop
)

// String returns a human-readable representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventReady:
		return "ready"
	case EventReload:
		return "reload"
	case EventCrash:
		return "crash"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ParseEventType converts a stored string back into an EventType.
// The second return value reports whether the string was recognized.
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "start":
		return EventStart, true
	case "ready":
		return EventReady, true
	case "reload":
		return EventReload, true
	case "crash":
		return EventCrash, true
	case "stop":
		return EventStop, true
	default:
		return EventStart, false
	}
}

// RunEvent is a single lifecycle event recorded during a supervised run.
type RunEvent struct {
	// ID is the database row ID, zero before the event is persisted.
	ID int64 `json:"id,omitempty"`

	// RunID ties the event to its run.
	RunID string `json:"runId"`

	// Type is the event classification.
	Type EventType `json:"-"`

	// TypeName is the string form of Type, used for JSON output.
	TypeName string `json:"type"`

	// Detail carries event-specific context: the changed path for reload
	// events, the exit status for crash events.
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// NewRunEvent creates a RunEvent with the current timestamp.
func NewRunEvent(runID string, typ EventType, detail string) *RunEvent {
	return &RunEvent{
		RunID:     runID,
		Type:      typ,
		TypeName:  typ.String(),
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// RunRecord is the persisted summary of one `devserve up` invocation.
type RunRecord struct {
	// ID is the database row ID.
	ID int64 `json:"id"`

	// RunID is the UUID assigned at launch.
	RunID string `json:"runId"`

	// Profile is the launch profile name.
	Profile string `json:"profile"`

	// Command is the argv of the supervised process, space-joined for
	// display and stored as JSON in the database.
	Command []string `json:"command"`

	// StartedAt is when supervision began.
	StartedAt time.Time `json:"startedAt"`

	// EndedAt is when supervision finished. Zero while the run is live
	// or when devserve was killed before it could finish the record.
	EndedAt time.Time `json:"endedAt,omitempty"`

	// ExitCode is the final exit status of the child process.
	// Meaningful only once EndedAt is set.
	ExitCode int `json:"exitCode"`

	// Restarts is the number of times the child was restarted during the
	// run, whether from reloads or crashes.
	Restarts int `json:"restarts"`

	// Events are the lifecycle events of the run, oldest first.
	// Populated on demand by history queries.
	Events []*RunEvent `json:"events,omitempty"`
}

// Duration returns how long the run lasted, or the elapsed time so far
// for a run that has not ended.
func (r *RunRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
