// Package syncer sequences the persistence tiers around application state.
//
// At startup it runs the one-time reconciliation: fetch remote, merge over
// the local snapshot, write the result locally. In steady state every
// mutation goes through Save, which coalesces bursts into one local write
// and one remote push after a quiet period, or SaveNow, which skips the
// wait. The running timer's {endTime, mode} goes to the ephemeral tier
// separately through RecordTimer so it never waits on the debounce window.
//
// No tier failure is returned to callers. Failures are logged and the
// best available local state stays authoritative.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fakeyudi/pomosync/internal/clock"
	"github.com/fakeyudi/pomosync/internal/reconcile"
	"github.com/fakeyudi/pomosync/internal/state"
)

// LocalTier is the durable local snapshot store.
type LocalTier interface {
	// Load returns the stored snapshot, or defaults with found false.
	Load(ctx context.Context) (snap state.Snapshot, found bool)
	Save(ctx context.Context, snap state.Snapshot) error
}

// RemoteTier is the remote snapshot store.
type RemoteTier interface {
	// Fetch returns nil when the remote holds no state.
	Fetch(ctx context.Context) (*state.Snapshot, error)
	Push(ctx context.Context, snap state.Snapshot) error
}

// EphemeralTier holds only the running timer.
type EphemeralTier interface {
	Save(ts state.TimerState) error
	Load() (state.TimerState, error)
	Clear() error
}

const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultFetchTimeout = 5 * time.Second
	DefaultPushTimeout  = 10 * time.Second
)

// Options configures an Orchestrator. Remote and Ephemeral may be nil.
type Options struct {
	Local     LocalTier
	Remote    RemoteTier
	Ephemeral EphemeralTier
	Clock     clock.Clock
	Logger    *slog.Logger

	Debounce     time.Duration
	FetchTimeout time.Duration
	PushTimeout  time.Duration
}

// Orchestrator owns the write path for one context. It is safe for
// concurrent use.
type Orchestrator struct {
	local     LocalTier
	remote    RemoteTier
	ephemeral EphemeralTier
	clock     clock.Clock
	logger    *slog.Logger

	debounce     time.Duration
	fetchTimeout time.Duration
	pushTimeout  time.Duration

	mu      sync.Mutex
	pending *state.Snapshot
	timer   *clock.Timer

	pushMu     sync.Mutex
	nextPush   *state.Snapshot
	pushing    bool
	pushesDone sync.WaitGroup
}

// New returns an Orchestrator over the given tiers.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = DefaultPushTimeout
	}
	return &Orchestrator{
		local:        opts.Local,
		remote:       opts.Remote,
		ephemeral:    opts.Ephemeral,
		clock:        opts.Clock,
		logger:       opts.Logger,
		debounce:     opts.Debounce,
		fetchTimeout: opts.FetchTimeout,
		pushTimeout:  opts.PushTimeout,
	}
}

// Startup performs the one-time reconciliation and returns the snapshot the
// rest of the application initializes from. An unreachable or empty remote
// leaves the local snapshot as is.
func (o *Orchestrator) Startup(ctx context.Context) state.Snapshot {
	local, found := o.local.Load(ctx)
	remote := o.fetch(ctx)

	// A device with nothing stored adopts the remote snapshot instead of
	// letting its defaults win every local-first field.
	if !found && remote != nil {
		local = state.Normalize(remote.Clone())
		local.TimerEndTime = nil
	}

	merged := reconcile.Merge(local, remote)
	if err := o.local.Save(ctx, merged); err != nil {
		o.logger.Warn("writing merged state", "error", err)
	}
	o.logger.Debug("startup reconciliation done",
		"local_found", found,
		"remote", remote != nil,
		"sessions", len(merged.Sessions),
		"pomodoros", merged.PomodorosCompleted,
	)
	return merged
}

// fetch returns the remote snapshot, or nil when there is none or it cannot
// be reached within the fetch timeout.
func (o *Orchestrator) fetch(ctx context.Context) *state.Snapshot {
	if o.remote == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()
	remote, err := o.remote.Fetch(ctx)
	if err != nil {
		o.logger.Debug("remote unavailable, continuing with local state", "error", err)
		return nil
	}
	return remote
}

// Save schedules snap to be written after the debounce window. A later Save
// within the window replaces it.
func (o *Orchestrator) Save(snap state.Snapshot) {
	c := snap.Clone()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = &c
	o.timer.Stop()
	o.timer = o.clock.AfterFunc(o.debounce, o.flushPending)
}

// SaveNow writes snap to the local tier before returning and starts the
// remote push in the background. Any pending debounced write is dropped
// since snap supersedes it.
func (o *Orchestrator) SaveNow(ctx context.Context, snap state.Snapshot) {
	o.mu.Lock()
	o.pending = nil
	o.timer.Stop()
	o.timer = nil
	o.mu.Unlock()

	o.write(ctx, snap.Clone())
}

// Flush writes any pending debounced snapshot immediately.
func (o *Orchestrator) Flush(ctx context.Context) {
	o.mu.Lock()
	snap := o.pending
	o.pending = nil
	o.timer.Stop()
	o.timer = nil
	o.mu.Unlock()

	if snap != nil {
		o.write(ctx, *snap)
	}
}

// Wait blocks until every started remote push has finished.
func (o *Orchestrator) Wait() {
	o.pushesDone.Wait()
}

// Shutdown flushes pending writes and waits for pushes, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.Flush(ctx)
	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("shutdown: remote push still in flight", "error", ctx.Err())
	}
}

func (o *Orchestrator) flushPending() {
	o.mu.Lock()
	snap := o.pending
	o.pending = nil
	o.timer = nil
	o.mu.Unlock()

	if snap != nil {
		o.write(context.Background(), *snap)
	}
}

func (o *Orchestrator) write(ctx context.Context, snap state.Snapshot) {
	if err := o.local.Save(ctx, snap); err != nil {
		o.logger.Warn("writing local state", "error", err)
	}
	o.schedulePush(snap.ForRemote())
}

// schedulePush hands snap to the single push worker. Pushes run one at a
// time in order; a snapshot queued behind an in-flight push replaces any
// older queued one.
func (o *Orchestrator) schedulePush(snap state.Snapshot) {
	if o.remote == nil {
		return
	}
	o.pushMu.Lock()
	defer o.pushMu.Unlock()
	o.nextPush = &snap
	if o.pushing {
		return
	}
	o.pushing = true
	o.pushesDone.Add(1)
	go o.pushLoop()
}

func (o *Orchestrator) pushLoop() {
	defer o.pushesDone.Done()
	for {
		o.pushMu.Lock()
		snap := o.nextPush
		o.nextPush = nil
		if snap == nil {
			o.pushing = false
			o.pushMu.Unlock()
			return
		}
		o.pushMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), o.pushTimeout)
		if err := o.remote.Push(ctx, *snap); err != nil {
			o.logger.Debug("remote push failed", "error", err)
		}
		cancel()
	}
}

// RecordTimer writes the running timer to the ephemeral tier. It returns
// only after the write so callers can notify other contexts afterwards.
func (o *Orchestrator) RecordTimer(ts state.TimerState) {
	if o.ephemeral == nil {
		return
	}
	if err := o.ephemeral.Save(ts); err != nil {
		o.logger.Warn("writing timer state", "error", err)
	}
}

// ClearTimer removes the ephemeral timer record.
func (o *Orchestrator) ClearTimer() {
	if o.ephemeral == nil {
		return
	}
	if err := o.ephemeral.Clear(); err != nil {
		o.logger.Warn("clearing timer state", "error", err)
	}
}

// LoadTimer returns the recorded running timer, if any.
func (o *Orchestrator) LoadTimer() (state.TimerState, bool) {
	if o.ephemeral == nil {
		return state.TimerState{}, false
	}
	ts, err := o.ephemeral.Load()
	if err != nil {
		return state.TimerState{}, false
	}
	return ts, true
}
