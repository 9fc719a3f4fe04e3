package blocker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fakeyudi/pomosync/internal/state"
)

// ErrSchedulerStopped is delivered for rewrites still queued when Run
// returns.
var ErrSchedulerStopped = errors.New("rule scheduler stopped")

type job struct {
	req           Request
	sessionActive bool
	done          chan error
}

// Scheduler serializes rule rewrites. ScheduleUpdate may be called from any
// goroutine; a single worker started by Run applies rewrites in call order
// and never starts one before the previous has finished or failed.
type Scheduler struct {
	store  RuleStore
	logger *slog.Logger

	mu            sync.Mutex
	queue         []job
	wake          chan struct{}
	sessionActive bool
	last          *Request
	stopped       bool
}

// NewScheduler returns a scheduler over store. Call Run to start applying.
func NewScheduler(store RuleStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// ScheduleUpdate enqueues a full rewrite for req using the session-active
// flag as of this call. The returned channel receives the rewrite's result
// and is then closed; callers may ignore it.
func (s *Scheduler) ScheduleUpdate(req Request) <-chan error {
	req.Blocklist = append([]string(nil), req.Blocklist...)
	done := make(chan error, 1)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		done <- ErrSchedulerStopped
		close(done)
		return done
	}
	s.last = &req
	s.queue = append(s.queue, job{req: req, sessionActive: s.sessionActive, done: done})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return done
}

// SetSessionActive records whether a work session is running. When the flag
// changes and the most recent request enforces only during work, a rewrite
// for that request is queued. It reports whether a rewrite was queued.
func (s *Scheduler) SetSessionActive(active bool) bool {
	s.mu.Lock()
	changed := s.sessionActive != active
	s.sessionActive = active
	last := s.last
	s.mu.Unlock()

	if !changed || last == nil || !last.Enabled || last.Mode == state.BlockAlways {
		return false
	}
	s.ScheduleUpdate(*last)
	return true
}

// SessionActive reports the current session flag.
func (s *Scheduler) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionActive
}

// Run applies queued rewrites until ctx is cancelled. Rewrites still queued
// at that point receive ErrSchedulerStopped.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				s.stop()
				return nil
			case <-s.wake:
				continue
			}
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := s.apply(ctx, next)
		if err != nil {
			s.logger.Warn("rule rewrite failed", "error", err, "domains", len(next.req.Blocklist))
		}
		next.done <- err
		close(next.done)
	}
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, j := range pending {
		j.done <- ErrSchedulerStopped
		close(j.done)
	}
}

func (s *Scheduler) apply(ctx context.Context, j job) error {
	existing, err := s.store.Rules(ctx)
	if err != nil {
		return err
	}
	removeIDs := make([]int, len(existing))
	for i, r := range existing {
		removeIDs[i] = r.ID
	}
	add := BuildRules(j.req, j.sessionActive)
	if err := s.store.UpdateRules(ctx, removeIDs, add); err != nil {
		return err
	}
	s.logger.Debug("rules applied",
		"active", j.req.Active(j.sessionActive),
		"removed", len(removeIDs),
		"added", len(add),
	)
	return nil
}
