package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/cricv/devserve/internal/model"
)

// MarkdownWriter outputs run history in Markdown format.
// This format is designed for documentation and sharing, for example
// pasting a crash-loop timeline into an issue tracker.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRuns outputs the run list in Markdown format.
func (w *MarkdownWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Devserve Run History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded yet.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			"`" + run.RunID + "`",
			run.Profile,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			formatDuration(run.Duration()),
			strconv.Itoa(run.Restarts),
			markdownStatus(run),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Run", "Profile", "Started", "Duration", "Restarts", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeCrashAlert(md, runs)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRun outputs a single run with its event timeline in Markdown format.
func (w *MarkdownWriter) WriteRun(run *model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Devserve Run " + run.RunID)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Profile", run.Profile},
			{"Command", "`" + strings.Join(run.Command, " ") + "`"},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", formatDuration(run.Duration())},
			{"Restarts", strconv.Itoa(run.Restarts)},
			{"Status", markdownStatus(run)},
		},
	})
	md.PlainText("")

	w.writeTimeline(md, run.Events)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// markdownStatus returns the status cell for a run.
func markdownStatus(run *model.RunRecord) string {
	switch {
	case run.EndedAt.IsZero():
		return "⏳ Running"
	case run.ExitCode == 0:
		return "✅ Clean exit"
	default:
		return "❌ Exit code " + strconv.Itoa(run.ExitCode)
	}
}

// writeCrashAlert writes an alert when recent runs show crash restarts.
func (w *MarkdownWriter) writeCrashAlert(md *markdown.Markdown, runs []*model.RunRecord) {
	var crashed int
	for _, run := range runs {
		if !run.EndedAt.IsZero() && run.ExitCode != 0 {
			crashed++
		}
	}

	switch {
	case crashed > 1:
		md.Warningf("%d of the listed runs ended with a non-zero exit code.", crashed)
	case crashed == 1:
		md.Note("One of the listed runs ended with a non-zero exit code.")
	default:
		md.Tip("All listed runs exited cleanly.")
	}
	md.PlainText("")
}

// writeTimeline writes the event timeline section.
func (w *MarkdownWriter) writeTimeline(md *markdown.Markdown, events []*model.RunEvent) {
	md.H2("Timeline")
	md.PlainText("")

	if len(events) == 0 {
		md.PlainText("No events recorded for this run.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(events))
	for i, ev := range events {
		detail := ev.Detail
		if detail == "" {
			detail = "-"
		}
		rows[i] = []string{
			ev.Timestamp.Format("15:04:05"),
			ev.Type.String(),
			detail,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Time", "Event", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by devserve*")
}
