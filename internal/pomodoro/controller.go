// Package pomodoro drives the work/break cycle on top of the countdown
// engine. It owns the in-memory snapshot for one interactive context and
// routes every change through the persistence tiers and, when a daemon is
// listening, the bridge.
package pomodoro

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/clock"
	"github.com/fakeyudi/pomosync/internal/countdown"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/stats"
	"github.com/fakeyudi/pomosync/internal/tasks"
)

// Persistence is the write path. *syncer.Orchestrator implements it.
type Persistence interface {
	Startup(ctx context.Context) state.Snapshot
	Save(snap state.Snapshot)
	SaveNow(ctx context.Context, snap state.Snapshot)
	Shutdown(ctx context.Context)
	RecordTimer(ts state.TimerState)
	ClearTimer()
	LoadTimer() (state.TimerState, bool)
}

// Notifier delivers messages to the background context. *bridge.Notifier
// implements it.
type Notifier interface {
	RulesChanged(msg bridge.RulesChanged)
	TimerState(msg bridge.TimerUpdate)
}

// Options configures a Controller. Notifier may be nil.
type Options struct {
	Persistence Persistence
	Notifier    Notifier
	Clock       clock.Clock
	Logger      *slog.Logger
	Countdown   countdown.Options
}

// Controller runs the pomodoro cycle. It is safe for concurrent use; the
// update callback runs without internal locks held.
type Controller struct {
	engine  *countdown.Engine
	persist Persistence
	notify  Notifier
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	snap     state.Snapshot
	onUpdate func()
}

// New returns a controller holding default state. Call Boot before use.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Controller{
		engine:  countdown.New(opts.Clock, opts.Countdown),
		persist: opts.Persistence,
		notify:  opts.Notifier,
		clock:   opts.Clock,
		logger:  opts.Logger,
		snap:    state.Defaults(),
	}
	c.engine.OnTick(c.tick)
	c.engine.OnComplete(c.complete)
	return c
}

// OnUpdate registers a callback invoked after every tick and state change.
func (c *Controller) OnUpdate(f func()) {
	c.mu.Lock()
	c.onUpdate = f
	c.mu.Unlock()
}

// Boot runs startup reconciliation and resumes a timer left running by a
// previous process. A recorded deadline that has already passed completes
// that phase once.
func (c *Controller) Boot(ctx context.Context) {
	snap := c.persist.Startup(ctx)
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	ts, ok := c.persist.LoadTimer()
	if !ok && snap.TimerEndTime != nil && snap.Mode.Valid() {
		ts = state.TimerState{EndTime: *snap.TimerEndTime, Mode: snap.Mode}
		ok = ts.Deadline().After(c.clock.Now())
	}

	c.mu.Lock()
	if ok {
		c.snap.Mode = ts.Mode
	}
	seconds := durationSeconds(&c.snap, c.snap.Mode)
	c.mu.Unlock()
	c.engine.Set(seconds)

	c.notifyRules()
	if !ok {
		c.persist.Save(c.edge())
		return
	}

	expired := !ts.Deadline().After(c.clock.Now())
	c.logger.Debug("resuming timer", "mode", ts.Mode, "end_time", ts.EndTime, "expired", expired)
	c.engine.Restore(ts.Deadline())
	if !expired {
		c.persist.Save(c.edge())
	}
}

// Shutdown stops the countdown without completing it, writes the current
// snapshot immediately, still carrying the running deadline, and waits for
// in-flight pushes within ctx. The ephemeral record is left for the next
// Boot to resume.
func (c *Controller) Shutdown(ctx context.Context) {
	snap := c.Snapshot()
	c.engine.Stop()
	c.persist.SaveNow(ctx, snap)
	c.persist.Shutdown(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone()
}

// Mode returns the current phase.
func (c *Controller) Mode() state.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Mode
}

// Remaining returns the whole seconds left in the current phase.
func (c *Controller) Remaining() int { return c.engine.Remaining() }

// Running reports whether the countdown is in progress.
func (c *Controller) Running() bool { return c.engine.Running() }

// Start begins or resumes the countdown. Starting with nothing left to
// count returns countdown.ErrNoDuration and changes nothing.
func (c *Controller) Start() error {
	if c.engine.Running() {
		return nil
	}
	if err := c.engine.Start(); err != nil {
		return err
	}
	c.persist.Save(c.edge())
	c.updated()
	return nil
}

// Pause freezes the countdown.
func (c *Controller) Pause() {
	if !c.engine.Running() {
		return
	}
	c.engine.Pause()
	c.persist.Save(c.edge())
	c.updated()
}

// Toggle starts when paused and pauses when running.
func (c *Controller) Toggle() error {
	if c.engine.Running() {
		c.Pause()
		return nil
	}
	return c.Start()
}

// Reset abandons the current phase and reloads its full duration.
func (c *Controller) Reset() {
	c.switchTo(c.Mode())
}

// Skip leaves the current phase without recording it. Work goes to the
// break the cycle would pick next; a break goes to work.
func (c *Controller) Skip() {
	c.mu.Lock()
	next := state.ModeWork
	if c.snap.Mode == state.ModeWork {
		next = state.ModeShortBreak
		n, interval := c.snap.PomodorosCompleted, c.snap.Settings.LongBreakInterval
		if n > 0 && n%interval == 0 {
			next = state.ModeLongBreak
		}
	}
	c.mu.Unlock()
	c.switchTo(next)
}

// SetMode switches phase; a running countdown is stopped and the new
// phase's duration loaded.
func (c *Controller) SetMode(m state.Mode) {
	if !m.Valid() {
		return
	}
	c.switchTo(m)
}

// Sync recomputes the countdown, completing it if the deadline passed
// while the process was suspended.
func (c *Controller) Sync() { c.engine.Sync() }

// Update applies fn to the snapshot and schedules a save. When the timer is
// idle the displayed duration follows any settings change. Blocklist
// changes are forwarded to the daemon.
func (c *Controller) Update(fn func(s *state.Snapshot)) {
	c.Apply(func(s *state.Snapshot) error {
		fn(s)
		return nil
	})
}

// Apply is Update for edits that can fail. fn works on a copy; when it
// returns an error the snapshot is left exactly as it was and nothing is
// saved.
func (c *Controller) Apply(fn func(s *state.Snapshot) error) error {
	c.mu.Lock()
	before := c.snap.Settings
	next := c.snap.Clone()
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.snap = state.Normalize(next)
	after := c.snap.Settings
	seconds := durationSeconds(&c.snap, c.snap.Mode)
	c.mu.Unlock()

	if !c.engine.Running() && durationsChanged(before, after) {
		c.engine.Set(seconds)
	}
	if blockingChanged(before, after) {
		c.notifyRules()
	}
	c.persist.Save(c.Snapshot())
	c.updated()
	return nil
}

// Checkpoint writes the current state through every tier before returning,
// skipping the debounce window. The view calls it when the terminal loses
// focus.
func (c *Controller) Checkpoint(ctx context.Context) {
	c.persist.SaveNow(ctx, c.edge())
}

// Resync runs the startup reconciliation again against the state this
// controller holds, adopts the merged result and pushes it. The running
// countdown is untouched.
func (c *Controller) Resync(ctx context.Context) state.Snapshot {
	c.Checkpoint(ctx)
	merged := c.persist.Startup(ctx)

	c.mu.Lock()
	before := c.snap.Settings
	merged.Mode = c.snap.Mode
	merged.TimerEndTime = c.snap.TimerEndTime
	c.snap = merged
	after := c.snap.Settings
	snap := c.snap.Clone()
	c.mu.Unlock()

	if blockingChanged(before, after) {
		c.notifyRules()
	}
	c.persist.SaveNow(ctx, snap)
	c.updated()
	return snap
}

func (c *Controller) switchTo(m state.Mode) {
	c.mu.Lock()
	c.snap.Mode = m
	seconds := durationSeconds(&c.snap, m)
	c.mu.Unlock()

	c.engine.Reset(seconds)
	c.persist.Save(c.edge())
	c.updated()
}

// tick runs on every whole-second change. A running timer's record is
// rewritten so it never lags the display.
func (c *Controller) tick(int) {
	mode := c.Mode()
	if target := c.engine.TargetTime(); !target.IsZero() {
		c.persist.RecordTimer(state.TimerState{EndTime: target.UnixMilli(), Mode: mode})
	}
	c.updated()
}

// complete records the finished phase and moves to the next one.
func (c *Controller) complete() {
	now := c.clock.Now()

	c.mu.Lock()
	s := &c.snap
	finished := s.Mode
	session := state.Session{
		Mode:            finished,
		DurationMinutes: int(s.Duration(finished) / time.Minute),
		Date:            state.DayKey(now),
		Timestamp:       nextTimestamp(s.Sessions, now),
	}
	next := state.ModeWork
	autoStart := s.Settings.AutoStartPomodoros
	if finished == state.ModeWork {
		s.PomodorosCompleted++
		session.TaskName = tasks.IncrementCurrent(s)
		stats.Touch(&s.Streak, now)
		next = state.ModeShortBreak
		if s.PomodorosCompleted%s.Settings.LongBreakInterval == 0 {
			next = state.ModeLongBreak
		}
		autoStart = s.Settings.AutoStartBreaks
	}
	s.Sessions = append(s.Sessions, session)
	s.Mode = next
	seconds := durationSeconds(s, next)
	count := s.PomodorosCompleted
	c.mu.Unlock()

	c.logger.Info("phase complete", "mode", finished, "next", next, "pomodoros", count)

	c.engine.Set(seconds)
	if autoStart {
		if err := c.engine.Start(); err != nil {
			c.logger.Debug("auto-start skipped", "error", err)
		}
	}
	c.persist.Save(c.edge())
	c.updated()
}

// edge records a transition: the ephemeral tier first, then the daemon.
// It returns the snapshot to save.
func (c *Controller) edge() state.Snapshot {
	target := c.engine.TargetTime()
	remaining := c.engine.Remaining()

	c.mu.Lock()
	mode := c.snap.Mode
	var endTime int64
	if target.IsZero() {
		c.snap.TimerEndTime = nil
	} else {
		endTime = target.UnixMilli()
		c.snap.TimerEndTime = &endTime
	}
	snap := c.snap.Clone()
	c.mu.Unlock()

	if endTime != 0 {
		c.persist.RecordTimer(state.TimerState{EndTime: endTime, Mode: mode})
	} else {
		c.persist.ClearTimer()
	}
	if c.notify != nil {
		c.notify.TimerState(bridge.TimerUpdate{
			IsWorking:        endTime != 0 && mode == state.ModeWork,
			Mode:             mode,
			RemainingSeconds: remaining,
			EndTime:          endTime,
		})
	}
	return snap
}

func (c *Controller) notifyRules() {
	if c.notify == nil {
		return
	}
	c.mu.Lock()
	msg := bridge.RulesFor(c.snap)
	c.mu.Unlock()
	c.notify.RulesChanged(msg)
}

func (c *Controller) updated() {
	c.mu.Lock()
	f := c.onUpdate
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

func durationSeconds(s *state.Snapshot, m state.Mode) int {
	return int(s.Duration(m) / time.Second)
}

// nextTimestamp keeps session timestamps unique within this device's
// history even when two phases finish in the same millisecond.
func nextTimestamp(sessions []state.Session, now time.Time) int64 {
	ts := now.UnixMilli()
	if n := len(sessions); n > 0 && sessions[n-1].Timestamp >= ts {
		ts = sessions[n-1].Timestamp + 1
	}
	return ts
}

func durationsChanged(a, b state.Settings) bool {
	return a.WorkDuration != b.WorkDuration ||
		a.ShortBreakDuration != b.ShortBreakDuration ||
		a.LongBreakDuration != b.LongBreakDuration
}

func blockingChanged(a, b state.Settings) bool {
	return a.BlockingEnabled != b.BlockingEnabled ||
		a.BlockingMode != b.BlockingMode ||
		!slices.Equal(a.Blocklist, b.Blocklist)
}
