package venv

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// Virtual environment resolution errors.
//
// Design decision: We define specific error types rather than wrapping all
// errors generically. ErrNotFound in particular drives a distinct user-facing
// path: the launcher prints its fixed diagnostic and pauses instead of
// failing with a stack of wrapped errors.
var (
	// ErrNotFound is returned when no virtual environment exists under any
	// of the candidate directories. The usual fix is creating one and
	// installing the project requirements.
	ErrNotFound = errors.New("virtual environment not found")

	// ErrNotExecutable is returned when the interpreter path exists but is
	// a directory or otherwise not a runnable file. This typically means a
	// half-created or corrupted environment.
	ErrNotExecutable = errors.New("virtual environment interpreter is not an executable file")
)

// candidateDirs are the virtual environment directory names probed under
// the project root, in order of preference.
var candidateDirs = []string{"venv", ".venv"}

// Interpreter describes a resolved virtual-environment interpreter.
type Interpreter struct {
	// Path is the absolute path of the interpreter binary.
	Path string

	// Dir is the virtual environment root directory.
	Dir string
}

// interpreterRelPath returns the interpreter location relative to the
// environment root for the given GOOS. Windows virtual environments place
// binaries under Scripts\, everything else under bin/.
func interpreterRelPath(goos string) string {
	if goos == "windows" {
		return filepath.Join("Scripts", "python.exe")
	}
	return filepath.Join("bin", "python")
}

// Resolve finds the virtual-environment interpreter under root.
// It probes the candidate directories (venv, .venv) for the
// platform-appropriate interpreter path and returns the first match.
// Returns ErrNotFound when no candidate contains an interpreter.
func Resolve(root string) (*Interpreter, error) {
	return resolveFor(root, runtime.GOOS)
}

// resolveFor is the GOOS-parameterized implementation of Resolve,
// split out so tests can cover the Windows layout on any platform.
func resolveFor(root, goos string) (*Interpreter, error) {
	rel := interpreterRelPath(goos)

	for _, dir := range candidateDirs {
		envDir := filepath.Join(root, dir)
		path := filepath.Join(envDir, rel)

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if info.IsDir() {
			return nil, ErrNotExecutable
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		absDir, err := filepath.Abs(envDir)
		if err != nil {
			return nil, err
		}

		return &Interpreter{Path: abs, Dir: absDir}, nil
	}

	return nil, ErrNotFound
}

// Exists reports whether a virtual environment is present under root.
func Exists(root string) bool {
	_, err := Resolve(root)
	return err == nil
}
