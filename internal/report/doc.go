// Package report renders run history in multiple output formats.
// It provides writers for terminal text, JSON, and Markdown so that
// `devserve history` can feed humans, scripts, and documentation alike.
package report
