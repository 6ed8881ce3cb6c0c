package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cricv/devserve/internal/config"
	"github.com/cricv/devserve/internal/history"
	"github.com/cricv/devserve/internal/probe"
	"github.com/cricv/devserve/internal/venv"
	"github.com/cricv/devserve/internal/workspace"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project environment for launch problems",
		Long: `Doctor runs the same preflight checks "up" performs, without launching
anything, and prints one line per check. Use it to diagnose why a launch
fails or to verify a fresh checkout before the first run.

Checks:
  - project directory exists
  - configuration file (if any) parses
  - virtual environment and interpreter
  - data directories exist and are writable
  - server and metrics ports are free
  - run history database opens`,
		RunE: runDoctorCmd,
	}

	cmd.Flags().StringP("dir", "C", ".",
		"Project root directory")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path")
	cmd.Flags().IntP("port", "p", config.DefaultPort,
		"Server port to check")
	cmd.Flags().Int("metrics-port", config.DefaultMetricsPort,
		"Metrics sidecar port to check (0 skips the check)")

	return cmd
}

// checkResult is one doctor check outcome.
type checkResult struct {
	name   string
	ok     bool
	detail string
}

// runDoctorCmd executes the doctor command.
func runDoctorCmd(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return err
	}
	metricsPort, err := cmd.Flags().GetInt("metrics-port")
	if err != nil {
		return err
	}

	workDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}

	results := runChecks(workDir, configPath, port, metricsPort)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		printCheck(out, r)
		if !r.ok {
			failed++
		}
	}

	fmt.Fprintln(out, "")
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	fmt.Fprintf(out, "All %d checks passed.\n", len(results))
	return nil
}

// printCheck writes a single check line.
func printCheck(out io.Writer, r checkResult) {
	mark := "ok"
	if !r.ok {
		mark = "FAIL"
	}
	fmt.Fprintf(out, "[%4s] %-22s %s\n", mark, r.name, r.detail)
}

// runChecks performs all doctor checks in order.
func runChecks(workDir, configPath string, port, metricsPort int) []checkResult {
	results := []checkResult{
		checkProjectDir(workDir),
		checkConfigFile(configPath, workDir),
		checkInterpreter(workDir),
		checkDataDirs(workDir),
		checkPort("server port", port),
	}

	if metricsPort != 0 {
		results = append(results, checkPort("metrics port", metricsPort))
	}
	results = append(results, checkHistory())

	return results
}

// checkProjectDir verifies the project root exists and is a directory.
func checkProjectDir(workDir string) checkResult {
	r := checkResult{name: "project directory"}

	info, err := os.Stat(workDir)
	switch {
	case err != nil:
		r.detail = err.Error()
	case !info.IsDir():
		r.detail = workDir + " is not a directory"
	default:
		r.ok = true
		r.detail = workDir
	}
	return r
}

// checkConfigFile verifies the configuration file parses, when one exists.
func checkConfigFile(configPath, workDir string) checkResult {
	r := checkResult{name: "configuration file"}

	found := config.FindConfigFile(configPath, workDir)
	if found == "" {
		if configPath != "" {
			r.detail = "not found: " + configPath
			return r
		}
		// No config file is a valid setup; defaults apply
		r.ok = true
		r.detail = "none (using defaults)"
		return r
	}

	f, err := config.LoadConfigFile(found)
	if err != nil {
		r.detail = fmt.Sprintf("%s: %v", found, err)
		return r
	}

	r.ok = true
	r.detail = fmt.Sprintf("%s (%d profiles)", found, len(f.Profiles))
	return r
}

// checkInterpreter verifies the virtual environment resolves.
func checkInterpreter(workDir string) checkResult {
	r := checkResult{name: "virtual environment"}

	interp, err := venv.Resolve(workDir)
	if err != nil {
		if errors.Is(err, venv.ErrNotFound) {
			r.detail = "not found (create with: python -m venv venv)"
		} else {
			r.detail = err.Error()
		}
		return r
	}

	r.ok = true
	r.detail = interp.Path
	return r
}

// checkDataDirs verifies the data directories exist and are writable.
// Absent directories pass: "up" creates them during boot.
func checkDataDirs(workDir string) checkResult {
	r := checkResult{name: "data directories"}

	layout := workspace.NewLayout(workDir, config.DefaultDataDir)
	for _, dir := range layout.Dirs() {
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				r.ok = true
				r.detail = dir + " absent (created on launch)"
				return r
			}
			r.detail = err.Error()
			return r
		}
	}

	if err := layout.CheckWritable(); err != nil {
		r.detail = err.Error()
		return r
	}

	r.ok = true
	r.detail = layout.Root
	return r
}

// checkPort verifies a TCP port can be bound on localhost.
func checkPort(name string, port int) checkResult {
	r := checkResult{name: name}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	if !probe.PortFree(addr) {
		r.detail = addr + " is already in use"
		return r
	}

	r.ok = true
	r.detail = addr + " is free"
	return r
}

// checkHistory verifies the run history database opens.
func checkHistory() checkResult {
	r := checkResult{name: "run history"}

	store, err := history.Open(config.XDGDataDir(), history.DefaultOptions())
	if err != nil {
		r.detail = err.Error()
		return r
	}
	if err := store.Close(); err != nil {
		r.detail = err.Error()
		return r
	}

	r.ok = true
	r.detail = config.XDGDataDir()
	return r
}
