// Package history provides SQLite-based storage for run records and their
// lifecycle events. Every `devserve up` invocation is persisted under the
// XDG data directory, giving `devserve history` something to report on and
// making crash loops diagnosable after the fact.
package history
