// Package edit describes the one-shot changes the CLI makes to application
// state as plain data, so the same change can be applied to a locally
// loaded snapshot or shipped over the bridge to the process that owns the
// state while a timer runs.
package edit

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fakeyudi/pomosync/internal/blocker"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/tasks"
)

// Kind names an edit.
type Kind string

const (
	TaskAdd    Kind = "task.add"
	TaskToggle Kind = "task.toggle"
	TaskRemove Kind = "task.remove"
	TaskSelect Kind = "task.select"
	TaskMove   Kind = "task.move"
	TaskNote   Kind = "task.note"
	TaskTag    Kind = "task.tag"

	BlockAdd    Kind = "block.add"
	BlockRemove Kind = "block.remove"
	BlockEnable Kind = "block.enable"
	BlockMode   Kind = "block.mode"
)

// ErrNoDomain is returned by a block.add edit whose arguments normalize to
// nothing.
var ErrNoDomain = errors.New("no valid domain given")

// Edit is one change. Only the fields its Kind uses are set.
type Edit struct {
	Kind     Kind               `cbor:"kind"`
	TaskID   int64              `cbor:"taskId,omitempty"`
	Name     string             `cbor:"name,omitempty"`
	Estimate int                `cbor:"estimate,omitempty"`
	Position int                `cbor:"position,omitempty"` // 0-based
	Text     string             `cbor:"text,omitempty"`
	Values   []string           `cbor:"values,omitempty"` // tags or domains
	Enabled  bool               `cbor:"enabled,omitempty"`
	Mode     state.BlockingMode `cbor:"mode,omitempty"`
}

// Result reports what an applied edit produced, for display.
type Result struct {
	TaskID   int64  `cbor:"taskId,omitempty"`
	TaskName string `cbor:"taskName,omitempty"`
	Done     bool   `cbor:"done,omitempty"`
	Domain   string `cbor:"domain,omitempty"`
	Blocked  int    `cbor:"blocked"`
}

// Blocking reports whether e changes the blocking configuration.
func (e Edit) Blocking() bool {
	switch e.Kind {
	case BlockAdd, BlockRemove, BlockEnable, BlockMode:
		return true
	}
	return false
}

// Apply performs e on s. On error s may be partially modified; callers
// apply edits to a copy they can discard.
func (e Edit) Apply(s *state.Snapshot) (Result, error) {
	res := Result{TaskID: e.TaskID}
	var err error
	switch e.Kind {
	case TaskAdd:
		estimate := e.Estimate
		var t state.Task
		t, err = tasks.Add(s, e.Name, &estimate)
		res.TaskID, res.TaskName = t.ID, t.Name
	case TaskToggle:
		res.Done, err = tasks.ToggleDone(s, e.TaskID)
	case TaskRemove:
		err = tasks.Remove(s, e.TaskID)
	case TaskSelect:
		err = tasks.Select(s, e.TaskID)
	case TaskMove:
		err = tasks.Move(s, e.TaskID, e.Position)
	case TaskNote:
		err = tasks.SetNotes(s, e.TaskID, e.Text)
	case TaskTag:
		for _, tag := range e.Values {
			if err = tasks.AddTag(s, e.TaskID, tag); err != nil {
				break
			}
		}
	case BlockAdd:
		added := blocker.NormalizeList(e.Values)
		if len(added) == 0 {
			return res, ErrNoDomain
		}
		s.Settings.Blocklist = blocker.NormalizeList(append(s.Settings.Blocklist, added...))
	case BlockRemove:
		if len(e.Values) != 1 {
			return res, errors.New("block.remove takes exactly one domain")
		}
		res.Domain = blocker.NormalizeDomain(e.Values[0])
		i := slices.Index(s.Settings.Blocklist, res.Domain)
		if i < 0 {
			return res, fmt.Errorf("%s is not on the blocklist", res.Domain)
		}
		s.Settings.Blocklist = slices.Delete(s.Settings.Blocklist, i, i+1)
	case BlockEnable:
		s.Settings.BlockingEnabled = e.Enabled
	case BlockMode:
		if e.Mode != state.BlockAlways && e.Mode != state.BlockDuringWork {
			return res, fmt.Errorf("unknown blocking mode %q (want always or work)", e.Mode)
		}
		s.Settings.BlockingMode = e.Mode
	default:
		return res, fmt.Errorf("unknown edit %q", e.Kind)
	}
	res.Blocked = len(s.Settings.Blocklist)
	return res, err
}
