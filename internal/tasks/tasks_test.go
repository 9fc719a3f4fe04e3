package tasks

import (
	"errors"
	"slices"
	"testing"

	"github.com/fakeyudi/pomosync/internal/state"
)

func names(s state.Snapshot) []string {
	var out []string
	for _, t := range s.Tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestAddAssignsNextIDAndSelectsFirst(t *testing.T) {
	s := state.Defaults()
	first, err := Add(&s, "write report", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 {
		t.Errorf("first id = %d, want 1", first.ID)
	}
	if s.CurrentTaskID == nil || *s.CurrentTaskID != 1 {
		t.Errorf("first task not selected: %v", s.CurrentTaskID)
	}

	s.Tasks = append(s.Tasks, state.Task{ID: 9, Name: "imported", Tags: []string{}})
	est := 3
	next, _ := Add(&s, "  review  ", &est)
	if next.ID != 10 || next.Name != "review" {
		t.Errorf("Add = %+v, want id 10 name review", next)
	}
	if *s.CurrentTaskID != 1 {
		t.Error("later Add changed the selection")
	}
	if next.EstimatedPomodoros == nil || *next.EstimatedPomodoros != 3 {
		t.Errorf("estimate = %v", next.EstimatedPomodoros)
	}

	if _, err := Add(&s, "   ", nil); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank Add error = %v, want ErrEmptyName", err)
	}
}

func TestRemoveClearsSelection(t *testing.T) {
	s := state.Defaults()
	a, _ := Add(&s, "a", nil)
	b, _ := Add(&s, "b", nil)

	if err := Remove(&s, b.ID); err != nil {
		t.Fatal(err)
	}
	if s.CurrentTaskID == nil || *s.CurrentTaskID != a.ID {
		t.Error("removing an unselected task cleared the selection")
	}
	if err := Remove(&s, a.ID); err != nil {
		t.Fatal(err)
	}
	if s.CurrentTaskID != nil {
		t.Error("removing the selected task left a dangling selection")
	}
	if err := Remove(&s, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(42) = %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		id   int64
		to   int
		want []string
	}{
		{1, 2, []string{"b", "c", "a"}},
		{3, 0, []string{"c", "a", "b"}},
		{2, 99, []string{"a", "c", "b"}},
		{2, -5, []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		s := state.Defaults()
		for _, n := range []string{"a", "b", "c"} {
			Add(&s, n, nil)
		}
		if err := Move(&s, tt.id, tt.to); err != nil {
			t.Fatal(err)
		}
		if got := names(s); !slices.Equal(got, tt.want) {
			t.Errorf("Move(%d, %d) = %v, want %v", tt.id, tt.to, got, tt.want)
		}
	}
}

func TestToggleNotesTags(t *testing.T) {
	s := state.Defaults()
	task, _ := Add(&s, "a", nil)

	done, err := ToggleDone(&s, task.ID)
	if err != nil || !done {
		t.Fatalf("ToggleDone = %v, %v", done, err)
	}
	if done, _ := ToggleDone(&s, task.ID); done {
		t.Error("second ToggleDone did not clear done")
	}

	SetNotes(&s, task.ID, "remember the tests")
	AddTag(&s, task.ID, "work")
	AddTag(&s, task.ID, "work")
	AddTag(&s, task.ID, " ")
	got := s.Tasks[0]
	if got.Notes != "remember the tests" {
		t.Errorf("notes = %q", got.Notes)
	}
	if !slices.Equal(got.Tags, []string{"work"}) {
		t.Errorf("tags = %v, want [work]", got.Tags)
	}
	if err := Select(&s, 77); !errors.Is(err, ErrNotFound) {
		t.Errorf("Select(77) = %v", err)
	}
}

func TestIncrementCurrent(t *testing.T) {
	s := state.Defaults()
	if name := IncrementCurrent(&s); name != "" {
		t.Errorf("no task: credited %q", name)
	}

	task, _ := Add(&s, "a", nil)
	if name := IncrementCurrent(&s); name != "a" || s.Tasks[0].CompletedPomodoros != 1 {
		t.Errorf("credited %q, count %d", name, s.Tasks[0].CompletedPomodoros)
	}

	ToggleDone(&s, task.ID)
	if name := IncrementCurrent(&s); name != "" || s.Tasks[0].CompletedPomodoros != 1 {
		t.Error("done task was credited")
	}
}
