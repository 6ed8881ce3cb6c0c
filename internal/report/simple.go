package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cricv/devserve/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables event timelines in run listings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with event timelines.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteRuns outputs the run list in human-readable format.
func (w *SimpleWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb)

	if len(runs) == 0 {
		sb.WriteString("  No runs recorded yet. Start one with `devserve up`.\n\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, run := range runs {
		w.writeRunLine(&sb, run)
		if w.verbose {
			w.writeEvents(&sb, run.Events)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %d run(s)\n", len(runs)))

	return w.output.Write([]byte(sb.String()))
}

// WriteRun outputs a single run with its full event timeline.
func (w *SimpleWriter) WriteRun(run *model.RunRecord) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("RUN %s\n", run.RunID))
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Profile:   %s\n", run.Profile))
	sb.WriteString(fmt.Sprintf("Command:   %s\n", strings.Join(run.Command, " ")))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", statusText(run)))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", formatDuration(run.Duration())))
	sb.WriteString(fmt.Sprintf("Restarts:  %d\n", run.Restarts))
	sb.WriteString("\n")

	if len(run.Events) > 0 {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		sb.WriteString("TIMELINE\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")
		w.writeEvents(&sb, run.Events)
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the listing header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         DEVSERVE RUN HISTORY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeRunLine writes one run summary line.
func (w *SimpleWriter) writeRunLine(sb *strings.Builder, run *model.RunRecord) {
	sb.WriteString(fmt.Sprintf("  [%s] %s  profile=%s  %s  restarts=%d\n",
		statusIndicator(run),
		run.StartedAt.Format("2006-01-02 15:04:05"),
		run.Profile,
		formatDuration(run.Duration()),
		run.Restarts,
	))
	sb.WriteString(fmt.Sprintf("      id=%s\n", run.RunID))
}

// writeEvents writes an indented event timeline.
func (w *SimpleWriter) writeEvents(sb *strings.Builder, events []*model.RunEvent) {
	for _, ev := range events {
		detail := ev.Detail
		if detail != "" {
			detail = "  " + detail
		}
		sb.WriteString(fmt.Sprintf("      %s  %-7s%s\n",
			ev.Timestamp.Format("15:04:05"),
			ev.Type.String(),
			detail,
		))
	}
}

// statusIndicator returns a short marker for the run outcome.
func statusIndicator(run *model.RunRecord) string {
	switch {
	case run.EndedAt.IsZero():
		return "..."
	case run.ExitCode == 0:
		return " ok"
	default:
		return "err"
	}
}

// statusText returns the run outcome as a sentence fragment.
func statusText(run *model.RunRecord) string {
	switch {
	case run.EndedAt.IsZero():
		return "running (or interrupted before the record was finished)"
	case run.ExitCode == 0:
		return "exited cleanly"
	default:
		return fmt.Sprintf("exited with code %d", run.ExitCode)
	}
}

// formatDuration rounds a duration to something readable at a glance.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
