// Package metrics exposes a sidecar HTTP endpoint with Prometheus
// metrics and a status snapshot for the supervised development server.
package metrics
