// Package stats derives streaks and daily summaries from session history.
package stats

import (
	"time"

	"github.com/fakeyudi/pomosync/internal/state"
)

// Touch updates the streak for a work session finished on day. Same day
// keeps the count, the following day extends it, anything else restarts
// it at 1.
func Touch(s *state.Streak, day time.Time) {
	today := state.DayKey(day)
	switch s.LastDate {
	case today:
		if s.Count == 0 {
			s.Count = 1
		}
	case state.DayKey(day.AddDate(0, 0, -1)):
		s.Count++
	default:
		s.Count = 1
	}
	s.LastDate = today
}

// Current returns the streak as of now: a streak whose last day is neither
// today nor yesterday has lapsed and counts as zero.
func Current(s state.Streak, now time.Time) int {
	if s.LastDate == state.DayKey(now) || s.LastDate == state.DayKey(now.AddDate(0, 0, -1)) {
		return s.Count
	}
	return 0
}

// Summary is the daily report.
type Summary struct {
	Date             string          `json:"date"`
	Pomodoros        int             `json:"pomodoros"`
	FocusMinutes     int             `json:"focusMinutes"`
	BreakMinutes     int             `json:"breakMinutes"`
	DailyGoal        int             `json:"dailyGoal"`
	TotalPomodoros   int             `json:"totalPomodoros"`
	CompletedTasks   int             `json:"completedTasks"`
	OpenTasks        int             `json:"openTasks"`
	Streak           int             `json:"streak"`
	CurrentTask      string          `json:"currentTask,omitempty"`
	Sessions         []state.Session `json:"sessions"`
	AchievementCount int             `json:"achievements"`
}

// Today summarizes snap for the calendar day containing now.
func Today(snap state.Snapshot, now time.Time) Summary {
	day := state.DayKey(now)
	sum := Summary{
		Date:             day,
		DailyGoal:        snap.Settings.DailyGoal,
		TotalPomodoros:   snap.PomodorosCompleted,
		Streak:           Current(snap.Streak, now),
		Sessions:         []state.Session{},
		AchievementCount: len(snap.Achievements),
	}
	for _, s := range snap.Sessions {
		if s.Date != day {
			continue
		}
		sum.Sessions = append(sum.Sessions, s)
		if s.Mode == state.ModeWork {
			sum.Pomodoros++
			sum.FocusMinutes += s.DurationMinutes
		} else {
			sum.BreakMinutes += s.DurationMinutes
		}
	}
	for _, t := range snap.Tasks {
		if t.Done {
			sum.CompletedTasks++
		} else {
			sum.OpenTasks++
		}
	}
	if t := snap.CurrentTask(); t != nil {
		sum.CurrentTask = t.Name
	}
	return sum
}
