// Package probe provides TCP-level checks around the supervised server
// port: waiting for the port to accept connections after a start, and
// verifying the port is free before one.
package probe
