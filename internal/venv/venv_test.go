package venv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeInterpreter creates a fake interpreter file at the expected location
// inside dir for the given GOOS layout.
func writeInterpreter(t *testing.T, envDir, goos string) string {
	t.Helper()

	path := filepath.Join(envDir, interpreterRelPath(goos))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0700); err != nil { //nolint:gosec // Fake interpreter must be executable
		t.Fatal(err)
	}
	return path
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("finds interpreter under venv", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		want := writeInterpreter(t, filepath.Join(root, "venv"), "linux")

		got, err := resolveFor(root, "linux")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("expected path %q, got %q", want, got.Path)
		}
		if got.Dir != filepath.Join(root, "venv") {
			t.Errorf("expected dir %q, got %q", filepath.Join(root, "venv"), got.Dir)
		}
	})

	t.Run("falls back to .venv", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		want := writeInterpreter(t, filepath.Join(root, ".venv"), "linux")

		got, err := resolveFor(root, "linux")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("expected path %q, got %q", want, got.Path)
		}
	})

	t.Run("prefers venv over .venv", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		want := writeInterpreter(t, filepath.Join(root, "venv"), "linux")
		writeInterpreter(t, filepath.Join(root, ".venv"), "linux")

		got, err := resolveFor(root, "linux")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("expected venv to win, got %q", got.Path)
		}
	})

	t.Run("windows layout uses Scripts\\python.exe", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		want := writeInterpreter(t, filepath.Join(root, "venv"), "windows")

		got, err := resolveFor(root, "windows")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("expected path %q, got %q", want, got.Path)
		}
	})

	t.Run("missing environment returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := resolveFor(t.TempDir(), "linux")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("interpreter path that is a directory returns ErrNotExecutable", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "venv", "bin", "python"), 0750); err != nil {
			t.Fatal(err)
		}

		_, err := resolveFor(root, "linux")
		if !errors.Is(err, ErrNotExecutable) {
			t.Errorf("expected ErrNotExecutable, got %v", err)
		}
	})
}

func TestExists(t *testing.T) {
	t.Parallel()

	t.Run("true when environment present", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeInterpreter(t, filepath.Join(root, "venv"), "linux")

		// Exists uses the runtime GOOS; on non-linux CI this still holds
		// because the linux layout matches darwin as well.
		if !Exists(root) {
			t.Error("expected Exists to be true")
		}
	})

	t.Run("false when environment absent", func(t *testing.T) {
		t.Parallel()

		if Exists(t.TempDir()) {
			t.Error("expected Exists to be false")
		}
	})
}
