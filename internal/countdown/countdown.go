// Package countdown implements a drift-corrected countdown timer.
//
// Remaining time is always derived from an absolute deadline as
// ceil((target-now)/1s), never by decrementing a counter, so missed or late
// callbacks cannot accumulate error. Two re-arming schedulers watch the same
// deadline: a fast foreground one that drives the display and a coarse
// background one that still fires roughly once per second when the
// foreground one is starved. Whichever observes expiry first completes the
// timer; a generation counter makes completion fire exactly once.
package countdown

import (
	"errors"
	"sync"
	"time"

	"github.com/fakeyudi/pomosync/internal/clock"
)

// ErrNoDuration is returned by Start when there is no time left to count.
var ErrNoDuration = errors.New("countdown: no duration set")

const (
	// DefaultForeground is the display refresh interval.
	DefaultForeground = 100 * time.Millisecond
	// DefaultBackground is the coarse interval that keeps firing when the
	// foreground scheduler is throttled.
	DefaultBackground = time.Second
)

// Options tunes the scheduler intervals. Zero values use the defaults.
type Options struct {
	Foreground time.Duration
	Background time.Duration
}

// Engine is a single countdown. All methods are safe for concurrent use.
// Tick and completion callbacks run without the engine lock held and may
// call back into the engine.
type Engine struct {
	clock      clock.Clock
	foreground time.Duration
	background time.Duration

	mu         sync.Mutex
	remaining  int
	target     time.Time
	running    bool
	gen        uint64
	lastTick   int
	fgTimer    *clock.Timer
	bgTimer    *clock.Timer
	onTick     func(remaining int)
	onComplete func()
}

// New returns an idle engine with nothing to count.
func New(c clock.Clock, opts Options) *Engine {
	if opts.Foreground <= 0 {
		opts.Foreground = DefaultForeground
	}
	if opts.Background <= 0 {
		opts.Background = DefaultBackground
	}
	return &Engine{
		clock:      c,
		foreground: opts.Foreground,
		background: opts.Background,
		lastTick:   -1,
	}
}

// OnTick registers the callback that receives remaining whole seconds.
func (e *Engine) OnTick(f func(remaining int)) {
	e.mu.Lock()
	e.onTick = f
	e.mu.Unlock()
}

// OnComplete registers the callback fired once per natural expiry.
func (e *Engine) OnComplete(f func()) {
	e.mu.Lock()
	e.onComplete = f
	e.mu.Unlock()
}

// Set cancels any running countdown, loads seconds as the remaining time and
// emits one tick with the new value. The engine is left idle.
func (e *Engine) Set(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	e.mu.Lock()
	e.stopLocked()
	e.remaining = seconds
	e.lastTick = seconds
	tick := e.onTick
	e.mu.Unlock()

	if tick != nil {
		tick(seconds)
	}
}

// Reset is Set under the name callers use when abandoning a phase.
func (e *Engine) Reset(seconds int) { e.Set(seconds) }

// Start begins counting down from the current remaining time. It is a no-op
// when already running and returns ErrNoDuration when nothing is left.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if e.remaining <= 0 {
		return ErrNoDuration
	}
	e.startLocked(e.clock.Now().Add(time.Duration(e.remaining) * time.Second))
	return nil
}

// Restore resumes a countdown toward an absolute deadline recorded earlier,
// typically by a previous process. A deadline already in the past completes
// the timer immediately, through the same single-fire path as a natural
// expiry.
func (e *Engine) Restore(target time.Time) {
	e.mu.Lock()
	e.stopLocked()
	e.remaining = remainingUntil(target, e.clock.Now())
	e.startLocked(target)
	gen := e.gen
	e.mu.Unlock()

	e.check(gen, true)
}

// Pause freezes the remaining time and cancels both schedulers before
// returning. It is a no-op when idle. Unlike a bare stop it emits one tick
// carrying the frozen value, so a display that only redraws on ticks shows
// the exact second it paused at.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.remaining = remainingUntil(e.target, e.clock.Now())
	e.stopLocked()
	rem := e.remaining
	e.lastTick = rem
	tick := e.onTick
	e.mu.Unlock()

	if tick != nil {
		tick(rem)
	}
}

// Stop cancels both schedulers without emitting a tick or completion. The
// remaining time is frozen; the caller keeps the deadline elsewhere.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.remaining = remainingUntil(e.target, e.clock.Now())
	}
	e.stopLocked()
}

// Sync forces a recomputation and a tick, for when a suspended host regains
// focus. If the deadline has passed it completes the timer.
func (e *Engine) Sync() {
	e.mu.Lock()
	if !e.running {
		rem := e.remaining
		tick := e.onTick
		e.mu.Unlock()
		if tick != nil {
			tick(rem)
		}
		return
	}
	gen := e.gen
	e.mu.Unlock()

	e.check(gen, true)
}

// TargetTime returns the absolute deadline while running, zero otherwise.
func (e *Engine) TargetTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return time.Time{}
	}
	return e.target
}

// Remaining returns the whole seconds left, derived from the deadline while
// running.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return remainingUntil(e.target, e.clock.Now())
	}
	return e.remaining
}

// Running reports whether a countdown is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) startLocked(target time.Time) {
	e.target = target
	e.running = true
	e.gen++
	gen := e.gen
	e.fgTimer = e.clock.AfterFunc(e.foreground, func() { e.fire(gen, true) })
	e.bgTimer = e.clock.AfterFunc(e.background, func() { e.fire(gen, false) })
}

// stopLocked cancels both schedulers and invalidates any callback that is
// already past its timer but has not yet taken the lock.
func (e *Engine) stopLocked() {
	e.running = false
	e.target = time.Time{}
	e.gen++
	e.fgTimer.Stop()
	e.bgTimer.Stop()
	e.fgTimer, e.bgTimer = nil, nil
}

func (e *Engine) fire(gen uint64, foreground bool) {
	e.check(gen, false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.gen != gen {
		return
	}
	if foreground {
		e.fgTimer = e.clock.AfterFunc(e.foreground, func() { e.fire(gen, true) })
	} else {
		e.bgTimer = e.clock.AfterFunc(e.background, func() { e.fire(gen, false) })
	}
}

// check recomputes remaining for generation gen and emits a tick when the
// value changed or force is set. Expiry moves the engine to idle and fires
// tick(0) then completion, once. The completion is dropped when the engine
// was set or stopped again in between.
func (e *Engine) check(gen uint64, force bool) {
	e.mu.Lock()
	if !e.running || e.gen != gen {
		e.mu.Unlock()
		return
	}
	rem := remainingUntil(e.target, e.clock.Now())
	e.remaining = rem
	tick := e.onTick
	if rem <= 0 {
		e.stopLocked()
		e.lastTick = 0
		expired := e.gen
		e.mu.Unlock()

		if tick != nil {
			tick(0)
		}

		// A Set, Restore or Stop that landed after expiry owns the engine
		// now; the completion belongs to a phase that was abandoned.
		e.mu.Lock()
		done := e.onComplete
		superseded := e.gen != expired
		e.mu.Unlock()
		if done != nil && !superseded {
			done()
		}
		return
	}
	changed := rem != e.lastTick
	e.lastTick = rem
	e.mu.Unlock()

	if tick != nil && (changed || force) {
		tick(rem)
	}
}

func remainingUntil(target, now time.Time) int {
	d := target.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
