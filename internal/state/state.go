// Package state defines the persisted application snapshot: settings, tasks,
// session history, achievements, streak and the current timer phase.
//
// A Snapshot is the unit every persistence tier reads and writes. Decode
// always overlays stored data on Defaults so fields introduced after the data
// was written come back populated.
package state

import (
	"encoding/json"
	"time"
)

// Mode is the current pomodoro phase.
type Mode string

const (
	ModeWork       Mode = "work"
	ModeShortBreak Mode = "shortBreak"
	ModeLongBreak  Mode = "longBreak"
)

// Valid reports whether m is one of the three known phases.
func (m Mode) Valid() bool {
	switch m {
	case ModeWork, ModeShortBreak, ModeLongBreak:
		return true
	}
	return false
}

// Task is a unit of work the user attributes pomodoros to.
type Task struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	EstimatedPomodoros *int     `json:"estimatedPomodoros"`
	CompletedPomodoros int      `json:"completedPomodoros"`
	Done               bool     `json:"done"`
	Notes              string   `json:"notes"`
	Tags               []string `json:"tags"`
}

// Session is an immutable record of one finished phase. Timestamp (unix
// milliseconds) is its identity across devices.
type Session struct {
	Mode             Mode   `json:"mode"`
	DurationMinutes  int    `json:"durationMinutes"`
	Date             string `json:"date"`
	Timestamp        int64  `json:"timestamp"`
	TaskName         string `json:"taskName,omitempty"`
	Note             string `json:"note,omitempty"`
	DistractionCount *int   `json:"distractionCount,omitempty"`
	TaskMarkedDone   bool   `json:"taskMarkedDone,omitempty"`
}

// Streak counts consecutive calendar days with at least one work session.
// LastDate and Count always travel together.
type Streak struct {
	LastDate string `json:"lastDate"`
	Count    int    `json:"count"`
}

// Snapshot is a complete, self-contained serialization of application state.
type Snapshot struct {
	Settings           Settings  `json:"settings"`
	Tasks              []Task    `json:"tasks"`
	Sessions           []Session `json:"sessions"`
	PomodorosCompleted int       `json:"pomodorosCompleted"`
	CurrentTaskID      *int64    `json:"currentTaskId"`
	Achievements       []string  `json:"achievements"`
	Streak             Streak    `json:"streakData"`
	Mode               Mode      `json:"mode"`
	// TimerEndTime is the running timer's deadline in unix milliseconds.
	// Meaningful only on the device that started the timer; never pushed.
	TimerEndTime *int64 `json:"timerEndTime,omitempty"`
}

// Defaults returns a fresh snapshot with every field populated.
func Defaults() Snapshot {
	return Snapshot{
		Settings:     DefaultSettings(),
		Tasks:        []Task{},
		Sessions:     []Session{},
		Achievements: []string{},
		Mode:         ModeWork,
	}
}

// Decode parses a stored snapshot and overlays it on Defaults. Any parse
// failure returns the full default snapshot together with the error; the
// payload is never partially trusted.
func Decode(data []byte) (Snapshot, error) {
	snap := Defaults()
	if err := json.Unmarshal(data, &snap); err != nil {
		return Defaults(), err
	}
	return Normalize(snap), nil
}

// Normalize fills nil collections and invalid enums so a decoded snapshot
// satisfies the same shape as Defaults.
func Normalize(s Snapshot) Snapshot {
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	for i := range s.Tasks {
		if s.Tasks[i].Tags == nil {
			s.Tasks[i].Tags = []string{}
		}
	}
	if s.Sessions == nil {
		s.Sessions = []Session{}
	}
	if s.Achievements == nil {
		s.Achievements = []string{}
	}
	if !s.Mode.Valid() {
		s.Mode = ModeWork
	}
	if s.PomodorosCompleted < 0 {
		s.PomodorosCompleted = 0
	}
	s.Settings = s.Settings.normalized()
	return s
}

// Encode serializes s for the local tier, transient fields included.
func Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// ForRemote returns a copy of s with transient fields removed.
func (s Snapshot) ForRemote() Snapshot {
	s.TimerEndTime = nil
	return s
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Settings = s.Settings.clone()
	out.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		out.Tasks[i] = t
		out.Tasks[i].Tags = append([]string(nil), t.Tags...)
		if t.EstimatedPomodoros != nil {
			est := *t.EstimatedPomodoros
			out.Tasks[i].EstimatedPomodoros = &est
		}
	}
	out.Sessions = append([]Session(nil), s.Sessions...)
	if out.Sessions == nil {
		out.Sessions = []Session{}
	}
	out.Achievements = append([]string(nil), s.Achievements...)
	if out.Achievements == nil {
		out.Achievements = []string{}
	}
	if s.CurrentTaskID != nil {
		id := *s.CurrentTaskID
		out.CurrentTaskID = &id
	}
	if s.TimerEndTime != nil {
		end := *s.TimerEndTime
		out.TimerEndTime = &end
	}
	return out
}

// CurrentTask returns the task currentTaskId points at, or nil when the
// reference is null or dangling.
func (s *Snapshot) CurrentTask() *Task {
	if s.CurrentTaskID == nil {
		return nil
	}
	for i := range s.Tasks {
		if s.Tasks[i].ID == *s.CurrentTaskID {
			return &s.Tasks[i]
		}
	}
	return nil
}

// Duration returns the configured length of phase m.
func (s *Snapshot) Duration(m Mode) time.Duration {
	switch m {
	case ModeShortBreak:
		return time.Duration(s.Settings.ShortBreakDuration) * time.Minute
	case ModeLongBreak:
		return time.Duration(s.Settings.LongBreakDuration) * time.Minute
	default:
		return time.Duration(s.Settings.WorkDuration) * time.Minute
	}
}

// DayKey formats t as the calendar-day key sessions are grouped by.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// TimerState is the running timer as the ephemeral tier and the background
// context see it. EndTime is unix milliseconds.
type TimerState struct {
	EndTime int64 `json:"endTime"`
	Mode    Mode  `json:"mode"`
}

// Deadline returns EndTime as a time.Time.
func (t TimerState) Deadline() time.Time {
	return time.UnixMilli(t.EndTime)
}
