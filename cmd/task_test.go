package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/tasks"
)

func storedSnapshot(t *testing.T) state.Snapshot {
	t.Helper()
	snap, err := readState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestTaskLifecycle(t *testing.T) {
	isolate(t)

	out, err := executeCommand(rootCmd, "task", "add", "write", "docs", "--estimate", "3")
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	if !strings.Contains(out, "added task 1: write docs") {
		t.Errorf("add output = %q", out)
	}
	taskEstimate = 0
	if _, err := executeCommand(rootCmd, "task", "add", "review"); err != nil {
		t.Fatalf("task add: %v", err)
	}

	snap := storedSnapshot(t)
	if len(snap.Tasks) != 2 {
		t.Fatalf("stored %d tasks, want 2", len(snap.Tasks))
	}
	if snap.CurrentTaskID == nil || *snap.CurrentTaskID != 1 {
		t.Errorf("first task not auto-selected: %v", snap.CurrentTaskID)
	}
	if e := snap.Tasks[0].EstimatedPomodoros; e == nil || *e != 3 {
		t.Errorf("estimate = %v, want 3", e)
	}
	if snap.Tasks[1].EstimatedPomodoros != nil {
		t.Errorf("second task estimate = %v, want none", *snap.Tasks[1].EstimatedPomodoros)
	}

	steps := [][]string{
		{"task", "select", "2"},
		{"task", "done", "1"},
		{"task", "tag", "2", "work", "urgent"},
		{"task", "note", "2", "check", "the", "tests"},
		{"task", "move", "2", "1"},
	}
	for _, args := range steps {
		if _, err := executeCommand(rootCmd, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	snap = storedSnapshot(t)
	if snap.Tasks[0].ID != 2 || snap.Tasks[1].ID != 1 {
		t.Errorf("order = %d, %d, want 2, 1", snap.Tasks[0].ID, snap.Tasks[1].ID)
	}
	review := snap.Tasks[0]
	if review.Notes != "check the tests" || strings.Join(review.Tags, ",") != "work,urgent" {
		t.Errorf("review = %+v", review)
	}
	if !snap.Tasks[1].Done {
		t.Error("task 1 not done")
	}

	out, err = executeCommand(rootCmd, "task", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"> [ ]   2  review (0) #work #urgent", "[x]   1  write docs (0/3)", "check the tests"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	if _, err := executeCommand(rootCmd, "task", "rm", "2"); err != nil {
		t.Fatal(err)
	}
	if snap := storedSnapshot(t); snap.CurrentTaskID != nil || len(snap.Tasks) != 1 {
		t.Errorf("after rm: current %v, %d tasks", snap.CurrentTaskID, len(snap.Tasks))
	}
}

func TestTaskErrorsLeaveStateUntouched(t *testing.T) {
	isolate(t)
	if _, err := executeCommand(rootCmd, "task", "add", "only"); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(rootCmd, "task", "done", "7")
	if !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("done 7: err = %v, want ErrNotFound", err)
	}
	if _, err := executeCommand(rootCmd, "task", "select", "abc"); err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Errorf("select abc: err = %v", err)
	}
	if _, err := executeCommand(rootCmd, "task", "move", "1", "0"); err == nil {
		t.Error("move to position 0 succeeded")
	}

	snap := storedSnapshot(t)
	if len(snap.Tasks) != 1 || snap.Tasks[0].Done {
		t.Errorf("state changed by failed commands: %+v", snap.Tasks)
	}
}

func TestTaskListEmpty(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "task", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no tasks") {
		t.Errorf("output = %q", out)
	}
}
