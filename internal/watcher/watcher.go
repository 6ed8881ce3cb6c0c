package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// skipDirs are directory names never watched, regardless of configuration.
// These trees churn constantly (bytecode caches, VCS metadata, the data
// workspace, virtual environments) and restarting on their changes would
// make the reloader useless.
var skipDirs = map[string]bool{
	"__pycache__":   true,
	".git":          true,
	".hg":           true,
	".mypy_cache":   true,
	".pytest_cache": true,
	"node_modules":  true,
	"venv":          true,
	".venv":         true,
}

// Event describes a debounced reload trigger.
type Event struct {
	// Path is the changed file, relative to the watch root when possible.
	Path string

	// Op is the filesystem operation that triggered the reload.
	Op string
}

// Watcher observes a directory tree and emits debounced reload events.
//
// Design decision: Debouncing lives here rather than in the supervisor
// because it is a property of how editors write files, not of how processes
// restart. A save in most editors produces a write burst (temp file, rename,
// chmod); collapsing the burst at the source keeps every consumer simple.
type Watcher struct {
	// fsw is the underlying fsnotify watcher.
	fsw *fsnotify.Watcher

	// root is the directory tree being watched.
	root string

	// extensions is the lowercase extension allowlist. Empty means all.
	extensions map[string]bool

	// ignore holds glob patterns matched against the slash-separated path
	// relative to root.
	ignore []string

	// extraSkipDirs are additional directory base names excluded from the
	// walk (the configured data directory, typically).
	extraSkipDirs map[string]bool

	// debounce is the quiet window required before an event is emitted.
	debounce time.Duration

	// events delivers debounced reload events to the consumer.
	events chan Event

	// logger is used for structured logging.
	logger *slog.Logger
}

// Option is a function that configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a custom logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithExtensions restricts reload events to files with the given
// extensions (e.g. ".py"). An empty list allows all files.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.extensions[strings.ToLower(ext)] = true
		}
	}
}

// WithIgnorePatterns excludes paths matching the given glob patterns.
// Patterns are matched against the path relative to the watch root.
func WithIgnorePatterns(patterns []string) Option {
	return func(w *Watcher) {
		w.ignore = patterns
	}
}

// WithSkipDirs excludes additional directory names from the watch tree.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, name := range names {
			if name != "" {
				w.extraSkipDirs[name] = true
			}
		}
	}
}

// WithDebounce sets the quiet window before a reload event is emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher over the root directory tree.
// The watcher does not start observing until Run is called.
func New(root string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{
		fsw:           fsw,
		root:          root,
		debounce:      400 * time.Millisecond,
		events:        make(chan Event, 1),
		extraSkipDirs: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close() //nolint:errcheck // Best effort cleanup
		return nil, err
	}

	return w, nil
}

// Events returns the channel of debounced reload events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes filesystem notifications until the context is cancelled.
// It is intended to run in its own goroutine; reload events are delivered
// via Events(). Run closes the events channel when it returns, so consumers
// ranging over Events() terminate with it.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending Event
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			// Newly created directories join the watch tree so files
			// created inside them trigger reloads too.
			if ev.Op.Has(fsnotify.Create) {
				if w.isWatchableDir(ev.Name) {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							"dir", ev.Name,
							"error", err,
						)
					}
				}
			}

			if !w.relevant(ev) {
				continue
			}

			rel := ev.Name
			if r, err := filepath.Rel(w.root, ev.Name); err == nil {
				rel = r
			}
			pending = Event{Path: rel, Op: ev.Op.String()}

			w.logger.Debug("file change observed",
				"path", pending.Path,
				"op", pending.Op,
			)

			// Restart the quiet window on every relevant event
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", "error", err)

		case <-timerC:
			timerC = nil
			timer = nil

			select {
			case w.events <- pending:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// addTree registers dir and all watchable subdirectories with fsnotify.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The tree can mutate underneath the walk; skip what vanished
			return nil //nolint:nilerr // Racing deletes are expected during a walk
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !w.isWatchableDir(path) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// isWatchableDir reports whether the directory participates in watching.
func (w *Watcher) isWatchableDir(path string) bool {
	base := filepath.Base(path)
	if skipDirs[base] || w.extraSkipDirs[base] {
		return false
	}
	// Hidden directories are skipped, except the root itself
	if strings.HasPrefix(base, ".") && path != w.root {
		return false
	}
	return true
}

// relevant reports whether a raw fsnotify event should trigger a reload.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	// Only content-affecting operations matter
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}

	// Extension allowlist
	if len(w.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(ev.Name))
		if !w.extensions[ext] {
			return false
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	rel = filepath.ToSlash(rel)

	// Events inside skipped trees can still arrive for the brief window
	// between directory creation and tree pruning
	for _, part := range strings.Split(rel, "/") {
		if skipDirs[part] || w.extraSkipDirs[part] {
			return false
		}
	}

	for _, pattern := range w.ignore {
		if ok, err := filepath.Match(pattern, rel); err == nil && ok {
			return false
		}
		if ok, err := filepath.Match(pattern, filepath.Base(rel)); err == nil && ok {
			return false
		}
	}

	return true
}
