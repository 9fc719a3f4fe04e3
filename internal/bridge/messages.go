// Package bridge is the message channel between the timer process and the
// blocking daemon, and between one-shot commands and a running timer.
//
// The daemon, and a running timer, each listen on a Unix socket. Each connection carries exactly one
// CBOR request {action, payload} and one CBOR response {ok, error, data}.
// Messages are fire-and-forget from the timer's point of view: a daemon that
// is not running is not an error worth surfacing.
package bridge

import (
	"context"
	"slices"

	"github.com/fakeyudi/pomosync/internal/state"
)

const (
	ActionRulesChanged  = "rulesChanged"
	ActionTimerState    = "timerState"
	ActionGetTimerState = "getTimerState"
)

// Actions served by a running timer on its control socket.
const (
	ActionPing   = "ping"
	ActionEdit   = "edit"
	ActionResync = "resync"
)

// SyncSummary answers resync.
type SyncSummary struct {
	Tasks     int `cbor:"tasks"`
	Sessions  int `cbor:"sessions"`
	Pomodoros int `cbor:"pomodoros"`
}

// SummaryOf counts what snap holds.
func SummaryOf(snap state.Snapshot) SyncSummary {
	return SyncSummary{
		Tasks:     len(snap.Tasks),
		Sessions:  len(snap.Sessions),
		Pomodoros: snap.PomodorosCompleted,
	}
}

// Request is the wire envelope for every call.
type Request struct {
	Action  string     `cbor:"action"`
	Payload RawMessage `cbor:"payload,omitempty"`
}

// Response is the wire envelope for every reply.
type Response struct {
	OK    bool       `cbor:"ok"`
	Error string     `cbor:"error,omitempty"`
	Data  RawMessage `cbor:"data,omitempty"`
}

// RulesChanged tells the daemon the blocklist configuration changed.
type RulesChanged struct {
	Blocklist       []string           `cbor:"blocklist"`
	BlockingEnabled bool               `cbor:"blockingEnabled"`
	BlockingMode    state.BlockingMode `cbor:"blockingMode"`
	CurrentTaskName string             `cbor:"currentTaskName,omitempty"`
}

// RulesFor builds the rulesChanged message describing snap.
func RulesFor(snap state.Snapshot) RulesChanged {
	msg := RulesChanged{
		Blocklist:       slices.Clone(snap.Settings.Blocklist),
		BlockingEnabled: snap.Settings.BlockingEnabled,
		BlockingMode:    snap.Settings.BlockingMode,
	}
	if t := snap.CurrentTask(); t != nil {
		msg.CurrentTaskName = t.Name
	}
	return msg
}

// TimerUpdate reports the timer after a transition edge.
type TimerUpdate struct {
	IsWorking        bool       `cbor:"isWorking"`
	Mode             state.Mode `cbor:"mode"`
	RemainingSeconds int        `cbor:"remainingSeconds"`
	// EndTime is the deadline in unix milliseconds, zero when not running.
	EndTime int64 `cbor:"endTime"`
}

// TimerInfo answers getTimerState.
type TimerInfo struct {
	EndTime int64      `cbor:"endTime"`
	Mode    state.Mode `cbor:"mode"`
}

// Handler is implemented by the daemon side.
type Handler interface {
	RulesChanged(ctx context.Context, msg RulesChanged) error
	TimerState(ctx context.Context, msg TimerUpdate) error
	// GetTimerState returns nil when no timer is known to be running.
	GetTimerState(ctx context.Context) (*TimerInfo, error)
}
