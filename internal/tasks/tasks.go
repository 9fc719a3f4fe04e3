// Package tasks implements the task list operations on a snapshot.
package tasks

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/fakeyudi/pomosync/internal/state"
)

// ErrNotFound is returned when no task has the given id.
var ErrNotFound = errors.New("task not found")

// ErrEmptyName is returned by Add for a blank name.
var ErrEmptyName = errors.New("task name is empty")

func index(s *state.Snapshot, id int64) (int, error) {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("task %d: %w", id, ErrNotFound)
}

// Add appends a task with the next free id. The first task added to an
// empty list becomes the current task.
func Add(s *state.Snapshot, name string, estimate *int) (state.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return state.Task{}, ErrEmptyName
	}
	var next int64 = 1
	for _, t := range s.Tasks {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	if estimate != nil && *estimate <= 0 {
		estimate = nil
	}
	t := state.Task{ID: next, Name: name, EstimatedPomodoros: estimate, Tags: []string{}}
	s.Tasks = append(s.Tasks, t)
	if s.CurrentTaskID == nil && len(s.Tasks) == 1 {
		id := t.ID
		s.CurrentTaskID = &id
	}
	return t, nil
}

// Remove deletes a task, clearing the current-task reference if it pointed
// at it.
func Remove(s *state.Snapshot, id int64) error {
	i, err := index(s, id)
	if err != nil {
		return err
	}
	s.Tasks = slices.Delete(s.Tasks, i, i+1)
	if s.CurrentTaskID != nil && *s.CurrentTaskID == id {
		s.CurrentTaskID = nil
	}
	return nil
}

// ToggleDone flips a task's done flag and returns the new value.
func ToggleDone(s *state.Snapshot, id int64) (bool, error) {
	i, err := index(s, id)
	if err != nil {
		return false, err
	}
	s.Tasks[i].Done = !s.Tasks[i].Done
	return s.Tasks[i].Done, nil
}

// Select makes id the current task.
func Select(s *state.Snapshot, id int64) error {
	if _, err := index(s, id); err != nil {
		return err
	}
	s.CurrentTaskID = &id
	return nil
}

// Move repositions a task to position to (0-based, clamped).
func Move(s *state.Snapshot, id int64, to int) error {
	i, err := index(s, id)
	if err != nil {
		return err
	}
	to = max(0, min(to, len(s.Tasks)-1))
	t := s.Tasks[i]
	s.Tasks = slices.Delete(s.Tasks, i, i+1)
	s.Tasks = slices.Insert(s.Tasks, to, t)
	return nil
}

// SetNotes replaces a task's notes.
func SetNotes(s *state.Snapshot, id int64, notes string) error {
	i, err := index(s, id)
	if err != nil {
		return err
	}
	s.Tasks[i].Notes = notes
	return nil
}

// AddTag adds tag to a task; tags are a set so a repeat is a no-op.
func AddTag(s *state.Snapshot, id int64, tag string) error {
	i, err := index(s, id)
	if err != nil {
		return err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" || slices.Contains(s.Tasks[i].Tags, tag) {
		return nil
	}
	s.Tasks[i].Tags = append(s.Tasks[i].Tags, tag)
	return nil
}

// IncrementCurrent credits one pomodoro to the current task unless it is
// done or missing. It returns the credited task's name, empty if none.
func IncrementCurrent(s *state.Snapshot) string {
	t := s.CurrentTask()
	if t == nil || t.Done {
		return ""
	}
	t.CompletedPomodoros++
	return t.Name
}
