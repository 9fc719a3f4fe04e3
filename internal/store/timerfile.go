package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fakeyudi/pomosync/internal/atomicfile"
	"github.com/fakeyudi/pomosync/internal/clock"
	"github.com/fakeyudi/pomosync/internal/state"
)

// ErrNoTimer is returned by TimerFile.Load when no live timer is recorded.
var ErrNoTimer = errors.New("no running timer")

// TimerMaxAge bounds how long a recorded timer stays readable.
const TimerMaxAge = 24 * time.Hour

// TimerFile is the ephemeral tier. It holds only {endTime, mode} and is
// written synchronously with an atomic rename on every timer edge, so a
// running timer survives the process being killed between writes.
type TimerFile struct {
	path  string
	clock clock.Clock
}

type timerRecord struct {
	state.TimerState
	Expires int64 `json:"expires"`
}

// NewTimerFile returns a TimerFile at path.
func NewTimerFile(path string, c clock.Clock) *TimerFile {
	return &TimerFile{path: path, clock: c}
}

// Path returns the file location.
func (f *TimerFile) Path() string { return f.path }

// Save records ts with a one-day expiry.
func (f *TimerFile) Save(ts state.TimerState) error {
	rec := timerRecord{
		TimerState: ts,
		Expires:    f.clock.Now().Add(TimerMaxAge).UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to persist timer state: %w", err)
	}
	if err := atomicfile.Write(f.path, data); err != nil {
		return fmt.Errorf("failed to persist timer state: %w", err)
	}
	return nil
}

// Load returns the recorded timer. A missing, expired or unreadable record
// yields ErrNoTimer; the caller starts without a running timer either way.
func (f *TimerFile) Load() (state.TimerState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return state.TimerState{}, ErrNoTimer
	}
	var rec timerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return state.TimerState{}, ErrNoTimer
	}
	if rec.EndTime == 0 || !rec.Mode.Valid() {
		return state.TimerState{}, ErrNoTimer
	}
	if rec.Expires != 0 && f.clock.Now().UnixMilli() >= rec.Expires {
		return state.TimerState{}, ErrNoTimer
	}
	return rec.TimerState, nil
}

// Clear removes the record.
func (f *TimerFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear timer state: %w", err)
	}
	return nil
}
