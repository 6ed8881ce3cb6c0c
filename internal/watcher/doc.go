// Package watcher turns raw filesystem notifications into debounced reload
// events. It watches the project source tree recursively, follows newly
// created directories, and filters out churn (data directories, virtual
// environments, bytecode caches) that must never restart the server.
package watcher
