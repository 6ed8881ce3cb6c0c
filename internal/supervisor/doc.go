// Package supervisor owns the lifecycle of the server child process: start,
// readiness confirmation, reload-triggered restarts, crash recovery with
// backoff, and graceful shutdown. It is deliberately unaware of where reload
// events come from or where lifecycle events go; both sides are channels and
// observer hooks wired up by the caller.
package supervisor
