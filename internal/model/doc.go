// Package model defines the core data structures used throughout devserve.
//
// This package contains the following main types:
//   - LaunchPlan: The resolved launch parameters assembled by the boot pipeline
//   - RunRecord: A persisted record of one supervised run
//   - RunEvent: A lifecycle event (start, reload, crash, stop) within a run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (pipeline, supervisor, history, report) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
