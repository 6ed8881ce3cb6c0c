// Package venv resolves the Python interpreter inside a project-local
// virtual environment. The launcher and the boot pipeline both depend on
// this resolution: a missing environment is the one precondition failure
// that gets a fixed, user-facing diagnostic instead of a bare error.
package venv
