package blocker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fakeyudi/pomosync/internal/bridge"
)

// Daemon is the background context: it answers bridge messages, keeps the
// mirror file current and feeds the rule scheduler.
type Daemon struct {
	scheduler *Scheduler
	mirror    *Mirror
	logger    *slog.Logger

	mu      sync.Mutex
	timer   *bridge.TimerInfo
	working bool
}

var _ bridge.Handler = (*Daemon)(nil)

// NewDaemon returns a daemon over scheduler and mirror.
func NewDaemon(scheduler *Scheduler, mirror *Mirror, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{scheduler: scheduler, mirror: mirror, logger: logger}
}

// Run applies the mirrored configuration, then runs the scheduler and the
// mirror watcher until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.scheduler.ScheduleUpdate(d.mirror.Load().Request())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.mirror.Watch(ctx, d.mirrorChanged); err != nil {
			d.logger.Warn("mirror watcher stopped", "error", err)
		}
	}()
	err := d.scheduler.Run(ctx)
	wg.Wait()
	return err
}

func (d *Daemon) mirrorChanged(ms MirrorState) {
	d.logger.Info("blocklist changed externally", "domains", len(ms.Blocklist), "enabled", ms.BlockingEnabled)
	d.scheduler.ScheduleUpdate(ms.Request())
}

// MirrorFor converts a rulesChanged message into the state the daemon keeps.
func MirrorFor(msg bridge.RulesChanged) MirrorState {
	ms := MirrorState{
		Blocklist:       NormalizeList(msg.Blocklist),
		BlockingEnabled: msg.BlockingEnabled,
		BlockingMode:    msg.BlockingMode,
		CurrentTaskName: msg.CurrentTaskName,
	}
	if ms.BlockingMode == "" {
		ms.BlockingMode = DefaultMirrorState().BlockingMode
	}
	return ms
}

// RulesChanged persists the new configuration and queues a rewrite. The
// rewrite is not awaited; the caller only needs the acknowledgement.
func (d *Daemon) RulesChanged(ctx context.Context, msg bridge.RulesChanged) error {
	ms := MirrorFor(msg)
	if err := d.mirror.Save(ms); err != nil {
		d.logger.Warn("saving blocker mirror", "error", err)
	}
	d.scheduler.ScheduleUpdate(ms.Request())
	return nil
}

// TimerState records the timer and toggles work-only enforcement.
func (d *Daemon) TimerState(ctx context.Context, msg bridge.TimerUpdate) error {
	d.mu.Lock()
	if msg.EndTime > 0 {
		d.timer = &bridge.TimerInfo{EndTime: msg.EndTime, Mode: msg.Mode}
	} else {
		d.timer = nil
	}
	badgeChanged := d.working != msg.IsWorking
	d.working = msg.IsWorking
	d.mu.Unlock()

	if badgeChanged {
		d.logger.Info("work session indicator", "working", msg.IsWorking, "mode", msg.Mode)
	}
	d.scheduler.SetSessionActive(msg.IsWorking)
	return nil
}

// GetTimerState returns the last running timer reported, or nil.
func (d *Daemon) GetTimerState(ctx context.Context) (*bridge.TimerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return nil, nil
	}
	info := *d.timer
	return &info, nil
}

// Working reports whether the last timer update was a running work phase.
func (d *Daemon) Working() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.working
}
