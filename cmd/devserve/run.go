package main

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cricv/devserve/internal/venv"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [args...]",
		Short: "Run the virtual-environment interpreter directly",
		Long: `Run executes the project's virtual-environment Python interpreter with
the given arguments, without supervision or auto-reload. This is the
one-shot counterpart to "up", useful for management scripts and REPLs.

If no virtual environment exists under venv/ or .venv/, run prints setup
instructions and waits for Enter before returning, so the message survives
terminals that close on exit.

Examples:
  # Open a REPL inside the project environment
  devserve run

  # Run a management script
  devserve run manage.py migrate

  # Run a module
  devserve run -- -m pytest tests/`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("dir", "C", ".",
		"Project root directory")
	cmd.Flags().Bool("no-pause", false,
		"Do not wait for Enter when the virtual environment is missing")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	workDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}

	interp, err := venv.Resolve(workDir)
	if err != nil {
		if errors.Is(err, venv.ErrNotFound) {
			return reportMissingVenv(cmd)
		}
		return err
	}

	child := exec.CommandContext(cmd.Context(), interp.Path, args...) //nolint:gosec // Running user arguments under the project interpreter is the point
	child.Dir = workDir
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("interpreter exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run interpreter: %w", err)
	}
	return nil
}

// reportMissingVenv prints the setup instructions and pauses for Enter
// unless --no-pause is set.
func reportMissingVenv(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Virtual environment not found!")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Create one in the project directory first:")
	fmt.Fprintln(out, "  python -m venv venv")
	if isWindows() {
		fmt.Fprintln(out, "  venv\\Scripts\\pip install -r requirements.txt")
	} else {
		fmt.Fprintln(out, "  venv/bin/pip install -r requirements.txt")
	}
	fmt.Fprintln(out, "")

	noPause, err := cmd.Flags().GetBool("no-pause")
	if err != nil {
		return err
	}
	if !noPause {
		fmt.Fprint(out, "Press Enter to continue . . . ")
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n') //nolint:errcheck // EOF just means there is nothing to wait for
		fmt.Fprintln(out, "")
	}

	return venv.ErrNotFound
}

// isWindows reports whether this build targets Windows.
func isWindows() bool {
	return runtime.GOOS == "windows"
}
