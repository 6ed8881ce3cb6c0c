package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cricv/devserve/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testRecord(runID string) *model.RunRecord {
	return &model.RunRecord{
		RunID:     runID,
		Profile:   "api",
		Command:   []string{"venv/bin/python", "-m", "uvicorn", "app.main:app"},
		StartedAt: time.Now().UTC(),
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database when CreateIfNotExists is set", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer s.Close() //nolint:errcheck

		if _, err := os.Stat(filepath.Join(dir, "devserve.db")); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("fails when database is missing and creation is disabled", func(t *testing.T) {
		t.Parallel()

		opts := Options{CreateIfNotExists: false}
		_, err := Open(t.TempDir(), opts)
		if err == nil {
			t.Fatal("Open() expected error for missing database, got nil")
		}
		// Callers distinguish "no history yet" from a broken database
		if !errors.Is(err, ErrNoDatabase) {
			t.Errorf("Open() error = %v, want ErrNoDatabase", err)
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		s, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer s.Close() //nolint:errcheck
	})
}

func TestStore_InsertRun(t *testing.T) {
	t.Parallel()

	t.Run("round-trips a run record", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		ctx := context.Background()

		want := testRecord("run-1")
		if err := s.InsertRun(ctx, want); err != nil {
			t.Fatalf("InsertRun() error = %v", err)
		}

		got, err := s.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got == nil {
			t.Fatal("GetRun() = nil, want record")
		}
		if got.Profile != want.Profile {
			t.Errorf("Profile = %q, want %q", got.Profile, want.Profile)
		}
		if len(got.Command) != len(want.Command) {
			t.Fatalf("Command length = %d, want %d", len(got.Command), len(want.Command))
		}
		for i, arg := range want.Command {
			if got.Command[i] != arg {
				t.Errorf("Command[%d] = %q, want %q", i, got.Command[i], arg)
			}
		}
		if got.StartedAt.IsZero() {
			t.Error("StartedAt is zero, want parsed timestamp")
		}
		if !got.EndedAt.IsZero() {
			t.Errorf("EndedAt = %v, want zero for an unfinished run", got.EndedAt)
		}
	})

	t.Run("rejects duplicate run IDs", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		ctx := context.Background()

		if err := s.InsertRun(ctx, testRecord("dup")); err != nil {
			t.Fatalf("InsertRun() error = %v", err)
		}
		if err := s.InsertRun(ctx, testRecord("dup")); err == nil {
			t.Error("InsertRun() expected error for duplicate run ID, got nil")
		}
	})
}

func TestStore_FinishRun(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertRun(ctx, testRecord("run-2")); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	if err := s.FinishRun(ctx, "run-2", 1, 3); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", got.ExitCode)
	}
	if got.Restarts != 3 {
		t.Errorf("Restarts = %d, want 3", got.Restarts)
	}
	if got.EndedAt.IsZero() {
		t.Error("EndedAt is zero, want timestamp after FinishRun")
	}
}

func TestStore_GetRun(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for unknown run", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)

		got, err := s.GetRun(context.Background(), "does-not-exist")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got != nil {
			t.Errorf("GetRun() = %+v, want nil", got)
		}
	})
}

func TestStore_ListRuns(t *testing.T) {
	t.Parallel()

	t.Run("returns runs newest first", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		ctx := context.Background()

		base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "mid", "new"} {
			rec := testRecord(id)
			rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
			if err := s.InsertRun(ctx, rec); err != nil {
				t.Fatalf("InsertRun(%q) error = %v", id, err)
			}
		}

		runs, err := s.ListRuns(ctx, 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("ListRuns() returned %d runs, want 3", len(runs))
		}
		if runs[0].RunID != "new" || runs[2].RunID != "old" {
			t.Errorf("order = [%s %s %s], want [new mid old]",
				runs[0].RunID, runs[1].RunID, runs[2].RunID)
		}
	})

	t.Run("honors the limit", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			if err := s.InsertRun(ctx, testRecord(id)); err != nil {
				t.Fatalf("InsertRun(%q) error = %v", id, err)
			}
		}

		runs, err := s.ListRuns(ctx, 2)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("ListRuns(limit=2) returned %d runs, want 2", len(runs))
		}
	})

	t.Run("empty store returns no runs", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)

		runs, err := s.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("ListRuns() returned %d runs, want 0", len(runs))
		}
	})
}

func TestStore_RunEvents(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertRun(ctx, testRecord("run-3")); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	steps := []struct {
		typ    model.EventType
		detail string
	}{
		{model.EventStart, "pid 101"},
		{model.EventReady, "ready in 1.2s"},
		{model.EventReload, "app/main.py"},
		{model.EventStop, "exited cleanly"},
	}
	for i, step := range steps {
		ev := model.NewRunEvent("run-3", step.typ, step.detail)
		ev.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := s.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent(%s) error = %v", step.typ, err)
		}
	}

	events, err := s.RunEvents(ctx, "run-3")
	if err != nil {
		t.Fatalf("RunEvents() error = %v", err)
	}
	if len(events) != len(steps) {
		t.Fatalf("RunEvents() returned %d events, want %d", len(events), len(steps))
	}
	for i, step := range steps {
		if events[i].Type != step.typ {
			t.Errorf("events[%d].Type = %s, want %s", i, events[i].Type, step.typ)
		}
		if events[i].Detail != step.detail {
			t.Errorf("events[%d].Detail = %q, want %q", i, events[i].Detail, step.detail)
		}
		if events[i].Timestamp.IsZero() {
			t.Errorf("events[%d].Timestamp is zero", i)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite default", input: "2026-08-01 12:00:00", zero: false},
		{name: "iso 8601 with Z", input: "2026-08-01T12:00:00Z", zero: false},
		{name: "rfc3339", input: "2026-08-01T12:00:00+09:00", zero: false},
		{name: "garbage", input: "not a timestamp", zero: true},
		{name: "empty", input: "", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q).IsZero() = %v, want %v", tt.input, got.IsZero(), tt.zero)
			}
		})
	}
}
