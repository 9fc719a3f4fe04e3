// Package reconcile merges a local and a remote snapshot into one.
//
// Merge is a single deterministic pass over a fixed per-field policy table.
// Both inputs are snapshots, not logs, so there is no iteration and no
// notion of causality beyond what each field's policy encodes:
//
//	sessions            union keyed by timestamp, local wins a collision, sorted ascending
//	achievements        set union
//	pomodorosCompleted  max
//	streak              record with the larger count wins wholesale
//	settings.blocklist  longer list is the base, the other side's entries are unioned in
//	settings (scalars)  local, then remote, then defaults
//	tasks               local if non-empty, else remote
//	currentTaskId, mode local, then remote, then default
//	timerEndTime        always local
//
// Settings scalars resolve last-writer-wins at startup. A same-field edit on
// another device that this device has not seen yet is overwritten; settings
// change rarely and there is one user per deployment.
package reconcile

import (
	"encoding/json"
	"slices"

	"github.com/fakeyudi/pomosync/internal/state"
)

// Merge reconciles local with remote. A nil remote (unreachable, or the
// server had no state yet) returns local unchanged.
func Merge(local state.Snapshot, remote *state.Snapshot) state.Snapshot {
	if remote == nil {
		return local
	}
	out := local.Clone()
	r := remote.Clone()

	out.Sessions = mergeSessions(out.Sessions, r.Sessions)
	out.Achievements = unionStrings(out.Achievements, r.Achievements)
	out.PomodorosCompleted = max(out.PomodorosCompleted, r.PomodorosCompleted)
	out.Streak = mergeStreak(out.Streak, r.Streak)
	out.Settings = mergeSettings(out.Settings, r.Settings)

	if len(out.Tasks) == 0 {
		out.Tasks = r.Tasks
	}
	if out.CurrentTaskID == nil {
		out.CurrentTaskID = r.CurrentTaskID
	}
	switch {
	case out.Mode.Valid():
	case r.Mode.Valid():
		out.Mode = r.Mode
	default:
		out.Mode = state.ModeWork
	}
	// TimerEndTime stays whatever local had.
	return out
}

func mergeSessions(local, remote []state.Session) []state.Session {
	seen := make(map[int64]bool, len(local)+len(remote))
	out := make([]state.Session, 0, len(local)+len(remote))
	for _, s := range local {
		if seen[s.Timestamp] {
			continue
		}
		seen[s.Timestamp] = true
		out = append(out, s)
	}
	for _, s := range remote {
		if seen[s.Timestamp] {
			continue
		}
		seen[s.Timestamp] = true
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b state.Session) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}

// unionStrings keeps base's order and appends entries from other it lacks.
func unionStrings(base, other []string) []string {
	seen := make(map[string]bool, len(base)+len(other))
	out := make([]string, 0, len(base)+len(other))
	for _, list := range [][]string{base, other} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func mergeStreak(local, remote state.Streak) state.Streak {
	if remote.Count > local.Count {
		return remote
	}
	return local
}

func mergeSettings(local, remote state.Settings) state.Settings {
	out := local
	if len(remote.Blocklist) > len(local.Blocklist) {
		out.Blocklist = unionStrings(remote.Blocklist, local.Blocklist)
	} else {
		out.Blocklist = unionStrings(local.Blocklist, remote.Blocklist)
	}

	// Keys this build does not model: remote fills, local overrides.
	if len(remote.Extra) > 0 {
		extra := make(map[string]json.RawMessage, len(remote.Extra)+len(local.Extra))
		for k, v := range remote.Extra {
			extra[k] = v
		}
		for k, v := range local.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}
