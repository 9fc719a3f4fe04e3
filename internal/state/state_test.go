package state

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeFillsMissingFields(t *testing.T) {
	snap, err := Decode([]byte(`{"pomodorosCompleted":3,"settings":{"workDuration":50}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.PomodorosCompleted != 3 {
		t.Errorf("PomodorosCompleted = %d, want 3", snap.PomodorosCompleted)
	}
	if snap.Settings.WorkDuration != 50 {
		t.Errorf("WorkDuration = %d, want 50", snap.Settings.WorkDuration)
	}
	def := DefaultSettings()
	if snap.Settings.ShortBreakDuration != def.ShortBreakDuration {
		t.Errorf("ShortBreakDuration = %d, want default %d", snap.Settings.ShortBreakDuration, def.ShortBreakDuration)
	}
	if snap.Settings.BlockingMode != BlockDuringWork {
		t.Errorf("BlockingMode = %q, want %q", snap.Settings.BlockingMode, BlockDuringWork)
	}
	if snap.Tasks == nil || snap.Sessions == nil || snap.Achievements == nil {
		t.Error("collections should be non-nil after Decode")
	}
	if snap.Mode != ModeWork {
		t.Errorf("Mode = %q, want %q", snap.Mode, ModeWork)
	}
}

func TestDecodeCorruptReturnsDefaults(t *testing.T) {
	for _, in := range []string{`{not json`, `[]`, `{"sessions":"nope"}`, ``} {
		snap, err := Decode([]byte(in))
		if err == nil {
			t.Errorf("Decode(%q): expected error", in)
		}
		if snap.PomodorosCompleted != 0 || len(snap.Sessions) != 0 || snap.Settings.WorkDuration != 25 {
			t.Errorf("Decode(%q): expected default snapshot, got %+v", in, snap)
		}
	}
}

func TestSettingsPreservesUnknownKeys(t *testing.T) {
	in := `{"workDuration":30,"confettiStyle":"stars","keyboard":{"start":"space"}}`
	s := DefaultSettings()
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.WorkDuration != 30 {
		t.Errorf("WorkDuration = %d, want 30", s.WorkDuration)
	}
	if string(s.Extra["confettiStyle"]) != `"stars"` {
		t.Errorf("Extra[confettiStyle] = %s", s.Extra["confettiStyle"])
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatalf("Unmarshal flat: %v", err)
	}
	if string(flat["confettiStyle"]) != `"stars"` {
		t.Errorf("confettiStyle not written back: %s", out)
	}
	if _, ok := flat["keyboard"]; !ok {
		t.Errorf("keyboard not written back: %s", out)
	}
	if string(flat["workDuration"]) != "30" {
		t.Errorf("workDuration = %s, want 30", flat["workDuration"])
	}
}

func TestForRemoteStripsTimerEndTime(t *testing.T) {
	snap := Defaults()
	end := int64(1_700_000_000_000)
	snap.TimerEndTime = &end

	data, err := Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "timerEndTime") {
		t.Errorf("local encoding should keep timerEndTime: %s", data)
	}

	data, err = Encode(snap.ForRemote())
	if err != nil {
		t.Fatalf("Encode remote: %v", err)
	}
	if strings.Contains(string(data), "timerEndTime") {
		t.Errorf("remote encoding should drop timerEndTime: %s", data)
	}
	if snap.TimerEndTime == nil {
		t.Error("ForRemote must not modify the receiver")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	snap := Defaults()
	snap.Tasks = []Task{{ID: 1, Name: "write", Tags: []string{"a"}}}
	snap.Settings.Blocklist = []string{"example.com"}
	id := int64(1)
	snap.CurrentTaskID = &id

	c := snap.Clone()
	c.Tasks[0].Tags[0] = "b"
	c.Settings.Blocklist[0] = "other.com"
	*c.CurrentTaskID = 2

	if snap.Tasks[0].Tags[0] != "a" {
		t.Error("task tags aliased")
	}
	if snap.Settings.Blocklist[0] != "example.com" {
		t.Error("blocklist aliased")
	}
	if *snap.CurrentTaskID != 1 {
		t.Error("currentTaskId aliased")
	}
}

func TestCurrentTask(t *testing.T) {
	snap := Defaults()
	snap.Tasks = []Task{{ID: 1, Name: "one"}, {ID: 2, Name: "two"}}
	if snap.CurrentTask() != nil {
		t.Error("nil currentTaskId should yield nil task")
	}
	id := int64(2)
	snap.CurrentTaskID = &id
	if got := snap.CurrentTask(); got == nil || got.Name != "two" {
		t.Errorf("CurrentTask = %+v, want two", got)
	}
	id = 9
	snap.CurrentTaskID = &id
	if snap.CurrentTask() != nil {
		t.Error("dangling currentTaskId should yield nil task")
	}
}
