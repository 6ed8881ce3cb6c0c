package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cricv/devserve/internal/config"
	"github.com/cricv/devserve/internal/history"
	"github.com/cricv/devserve/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past supervised runs",
		Long: `History lists past "up" runs recorded in the run database: when they
started, how long they lived, how often they restarted, and how they ended.
Given a run ID it shows that run's full lifecycle timeline instead.

Examples:
  # List the 20 most recent runs
  devserve history

  # List more runs with their event timelines
  devserve history -n 50 -v

  # Inspect one run
  devserve history 6b1f0c1e-8a3f-4a7e-9b1a-1f2e3d4c5b6a

  # Export the history as Markdown
  devserve history --markdown -o runs.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := selectWriter(output, jsonOut, markdownOut, getVerboseFlag(cmd))

	// Open existing history only; an absent database is just empty
	// history, but a database that exists and fails to open is an error
	// worth surfacing.
	store, err := history.Open(config.XDGDataDir(), history.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		if !errors.Is(err, history.ErrNoDatabase) {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		if len(args) > 0 {
			return fmt.Errorf("run not found: %s", args[0])
		}
		_, werr := writer.WriteRuns(nil)
		return werr
	}
	defer store.Close() //nolint:errcheck // Read-only usage

	ctx := cmd.Context()

	// Single-run mode
	if len(args) > 0 {
		runID := args[0]
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run not found: %s", runID)
		}
		run.Events, err = store.RunEvents(ctx, runID)
		if err != nil {
			return err
		}
		_, err = writer.WriteRun(run)
		return err
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	// Verbose listings include each run's timeline
	if getVerboseFlag(cmd) {
		for _, run := range runs {
			run.Events, err = store.RunEvents(ctx, run.RunID)
			if err != nil {
				return err
			}
		}
	}

	_, err = writer.WriteRuns(runs)
	return err
}

// selectWriter picks the history writer for the requested format.
func selectWriter(output io.Writer, jsonOut, markdownOut, verbose bool) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case markdownOut:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// openOutput resolves the output destination. An empty path means the
// command's stdout; otherwise the file is created with owner-only
// permissions, with parent directories as needed.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close
}
