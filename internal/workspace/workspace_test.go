package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewLayout(t *testing.T) {
	t.Parallel()

	t.Run("relative data dir resolves against work dir", func(t *testing.T) {
		t.Parallel()

		l := NewLayout("/project", "data")
		if l.Root != filepath.Join("/project", "data") {
			t.Errorf("expected root under work dir, got %q", l.Root)
		}
	})

	t.Run("absolute data dir is used as-is", func(t *testing.T) {
		t.Parallel()

		l := NewLayout("/project", "/srv/data")
		if l.Root != "/srv/data" {
			t.Errorf("expected '/srv/data', got %q", l.Root)
		}
	})

	t.Run("layout contains the three data directories", func(t *testing.T) {
		t.Parallel()

		l := NewLayout("/project", "data")
		dirs := l.Dirs()
		if len(dirs) != 4 {
			t.Fatalf("expected 4 dirs (root + 3), got %d", len(dirs))
		}

		want := map[string]string{
			"raw_videos": l.RawVideos(),
			"processed":  l.Processed(),
			"thumbnails": l.Thumbnails(),
		}
		for name, path := range want {
			if filepath.Base(path) != name {
				t.Errorf("expected %s path to end in %q, got %q", name, name, path)
			}
		}
	})
}

func TestLayoutEnsure(t *testing.T) {
	t.Parallel()

	t.Run("creates all directories", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, dir := range l.Dirs() {
			info, err := os.Stat(dir)
			if err != nil {
				t.Errorf("expected %s to exist: %v", dir, err)
				continue
			}
			if !info.IsDir() {
				t.Errorf("expected %s to be a directory", dir)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatalf("first Ensure failed: %v", err)
		}
		if err := l.Ensure(); err != nil {
			t.Errorf("second Ensure failed: %v", err)
		}
	})

	t.Run("preserves existing content", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatal(err)
		}

		keep := filepath.Join(l.RawVideos(), "match.mp4")
		if err := os.WriteFile(keep, []byte("frames"), 0600); err != nil {
			t.Fatal(err)
		}

		if err := l.Ensure(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("expected existing file to survive re-bootstrap: %v", err)
		}
	})
}

func TestLayoutCheckWritable(t *testing.T) {
	t.Parallel()

	t.Run("writable layout passes", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatal(err)
		}
		if err := l.CheckWritable(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("missing directory fails", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		// Ensure deliberately not called
		if err := l.CheckWritable(); err == nil {
			t.Error("expected error for missing directories")
		}
	})

	t.Run("read-only directory fails", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("directory permission bits are not enforced on Windows")
		}
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permission bits")
		}

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(l.Processed(), 0500); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			_ = os.Chmod(l.Processed(), 0750) //nolint:errcheck // Best effort cleanup
		})

		if err := l.CheckWritable(); err == nil {
			t.Error("expected error for read-only directory")
		}
	})

	t.Run("probe file is removed afterwards", func(t *testing.T) {
		t.Parallel()

		l := NewLayout(t.TempDir(), "data")
		if err := l.Ensure(); err != nil {
			t.Fatal(err)
		}
		if err := l.CheckWritable(); err != nil {
			t.Fatal(err)
		}

		for _, dir := range l.Dirs() {
			if _, err := os.Stat(filepath.Join(dir, ".devserve-write-probe")); !os.IsNotExist(err) {
				t.Errorf("expected probe file in %s to be removed", dir)
			}
		}
	})
}
