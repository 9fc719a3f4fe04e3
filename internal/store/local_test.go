package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/pomosync/internal/state"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "local.db"), nil)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalStoreEmptyReturnsDefaults(t *testing.T) {
	s := newTestLocalStore(t)
	snap, found := s.Load(context.Background())
	if found {
		t.Error("found = true on an empty store")
	}
	if snap.Settings.WorkDuration != 25 || snap.Mode != state.ModeWork {
		t.Errorf("expected defaults, got %+v", snap)
	}
}

func TestLocalStoreSaveLoad(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	snap := state.Defaults()
	snap.PomodorosCompleted = 4
	snap.Sessions = []state.Session{{Mode: state.ModeWork, DurationMinutes: 25, Date: "2026-10-16", Timestamp: 1000}}
	end := int64(123456)
	snap.TimerEndTime = &end
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap.PomodorosCompleted = 5
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, found := s.Load(ctx)
	if !found {
		t.Fatal("found = false after Save")
	}
	if got.PomodorosCompleted != 5 {
		t.Errorf("PomodorosCompleted = %d, want 5", got.PomodorosCompleted)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].Timestamp != 1000 {
		t.Errorf("Sessions = %+v", got.Sessions)
	}
	if got.TimerEndTime == nil || *got.TimerEndTime != end {
		t.Errorf("TimerEndTime = %v, want local tier to keep it", got.TimerEndTime)
	}
}

func TestLocalStoreCorruptReturnsDefaults(t *testing.T) {
	s := newTestLocalStore(t)
	_, err := s.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)`, StateKey, `{"sessions": [`, "now")
	if err != nil {
		t.Fatalf("seeding corrupt row: %v", err)
	}
	snap, found := s.Load(context.Background())
	if found {
		t.Error("found = true for a corrupt payload")
	}
	if len(snap.Sessions) != 0 || snap.Settings.WorkDuration != 25 {
		t.Errorf("expected defaults, got %+v", snap)
	}
}

func TestLocalStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	s, err := NewLocalStore(path, nil)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	snap := state.Defaults()
	snap.Achievements = []string{"first"}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = NewLocalStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, found := s.Load(ctx)
	if !found || len(got.Achievements) != 1 || got.Achievements[0] != "first" {
		t.Errorf("after reopen: found=%v achievements=%v", found, got.Achievements)
	}
}
