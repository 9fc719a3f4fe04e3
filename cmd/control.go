package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/edit"
	"github.com/fakeyudi/pomosync/internal/pomodoro"
	"github.com/fakeyudi/pomosync/internal/state"
)

const editTimeout = 2 * time.Second

// newControlServer exposes a running controller on the control socket so
// one-shot commands change its state instead of writing the store under
// it.
func newControlServer(c *pomodoro.Controller) *bridge.Server {
	s := bridge.NewSocketServer(cfg.ControlPath(), logger)
	s.Handle(bridge.ActionPing, func(context.Context, []byte) (any, error) {
		return nil, nil
	})
	s.Handle(bridge.ActionEdit, func(ctx context.Context, payload []byte) (any, error) {
		var e edit.Edit
		if err := bridge.DecodePayload(payload, &e); err != nil {
			return nil, err
		}
		var res edit.Result
		err := c.Apply(func(s *state.Snapshot) error {
			var err error
			res, err = e.Apply(s)
			return err
		})
		if err != nil {
			return nil, err
		}
		// The caller treats the reply as committed.
		c.Checkpoint(ctx)
		if e.Blocking() {
			notifyDaemon(ctx, bridge.RulesFor(c.Snapshot()))
		}
		logger.Debug("applied edit from another process", "edit", e.Kind)
		return res, nil
	})
	s.Handle(bridge.ActionResync, func(ctx context.Context, _ []byte) (any, error) {
		return bridge.SummaryOf(c.Resync(ctx)), nil
	})
	return s
}

// callTimer sends action to a running timer. ErrUnavailable means no
// timer owns the data directory. A failure the timer reports comes back
// carrying only its message.
func callTimer(ctx context.Context, action string, payload, result any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := bridge.NewClient(cfg.ControlPath()).Call(ctx, action, payload, result)
	var ae *bridge.ActionError
	if errors.As(err, &ae) {
		return errors.New(ae.Message)
	}
	return err
}

// timerRunning reports whether a timer process answers on the control
// socket.
func timerRunning(ctx context.Context) bool {
	return callTimer(ctx, bridge.ActionPing, nil, nil, editTimeout) == nil
}

// applyEdit hands e to a running timer, or applies it to the stored state
// when none is running.
func applyEdit(ctx context.Context, e edit.Edit) (edit.Result, error) {
	var res edit.Result
	err := callTimer(ctx, bridge.ActionEdit, e, &res, editTimeout)
	if !errors.Is(err, bridge.ErrUnavailable) {
		return res, err
	}

	snap, err := withState(ctx, func(s *state.Snapshot) error {
		var err error
		res, err = e.Apply(s)
		return err
	})
	if err != nil {
		return res, err
	}
	if e.Blocking() {
		notifyDaemon(ctx, bridge.RulesFor(snap))
	}
	return res, nil
}
