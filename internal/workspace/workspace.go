package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Subdirectory names under the data root.
// raw_videos receives uploads, processed holds pipeline output, and
// thumbnails holds preview images generated at upload time.
const (
	RawVideosDir  = "raw_videos"
	ProcessedDir  = "processed"
	ThumbnailsDir = "thumbnails"
)

// dirMode is the permission mode for created data directories.
// Group access without world access, matching how the rest of the tool
// creates directories.
const dirMode = 0750

// Layout describes the workspace directory tree for one project.
type Layout struct {
	// Root is the data directory root (absolute).
	Root string
}

// NewLayout creates a Layout rooted at dataDir, resolved against workDir
// when relative.
func NewLayout(workDir, dataDir string) *Layout {
	root := dataDir
	if !filepath.IsAbs(root) {
		root = filepath.Join(workDir, dataDir)
	}
	return &Layout{Root: root}
}

// RawVideos returns the absolute path of the raw video input directory.
func (l *Layout) RawVideos() string { return filepath.Join(l.Root, RawVideosDir) }

// Processed returns the absolute path of the processed output directory.
func (l *Layout) Processed() string { return filepath.Join(l.Root, ProcessedDir) }

// Thumbnails returns the absolute path of the thumbnail directory.
func (l *Layout) Thumbnails() string { return filepath.Join(l.Root, ThumbnailsDir) }

// Dirs returns all directories of the layout, root first.
func (l *Layout) Dirs() []string {
	return []string{l.Root, l.RawVideos(), l.Processed(), l.Thumbnails()}
}

// Ensure creates every directory of the layout that does not already exist.
// Existing directories are left untouched, so repeated bootstraps are safe.
func (l *Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// CheckWritable verifies that every directory of the layout accepts writes
// by creating and removing a probe file. A read-only volume mount or a
// permissions mismatch between the container user and the host surfaces
// here rather than minutes later inside the application.
func (l *Layout) CheckWritable() error {
	for _, dir := range l.Dirs() {
		probe := filepath.Join(dir, ".devserve-write-probe")

		f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600) //nolint:gosec // Probe path is derived from the layout, not user input
		if err != nil {
			return fmt.Errorf("directory %s is not writable: %w", dir, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close probe file in %s: %w", dir, err)
		}
		if err := os.Remove(probe); err != nil {
			return fmt.Errorf("failed to remove probe file in %s: %w", dir, err)
		}
	}
	return nil
}
