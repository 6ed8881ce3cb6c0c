// Package pipeline implements the boot sequence that turns configuration
// into a runnable launch plan: workspace provisioning, interpreter
// resolution, port preflight, and command finalization. Steps run in order,
// each filling in part of the plan, and any failure stops the launch before
// a process is started.
package pipeline
