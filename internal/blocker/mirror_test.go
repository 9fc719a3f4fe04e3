package blocker

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fakeyudi/pomosync/internal/atomicfile"
	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/state"
)

func TestMirrorLoadDefaults(t *testing.T) {
	m := NewMirror(filepath.Join(t.TempDir(), "blocker.json"), quiet)
	ms := m.Load()
	if !ms.BlockingEnabled || ms.BlockingMode != state.BlockDuringWork || ms.Blocklist == nil {
		t.Errorf("Load on missing file = %+v, want defaults", ms)
	}

	if err := os.WriteFile(m.Path(), []byte("{garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ms := m.Load(); !ms.BlockingEnabled || len(ms.Blocklist) != 0 {
		t.Errorf("Load on corrupt file = %+v, want defaults", ms)
	}
}

func TestMirrorSaveLoad(t *testing.T) {
	m := NewMirror(filepath.Join(t.TempDir(), "blocker.json"), quiet)
	want := MirrorState{Blocklist: []string{"a.com"}, BlockingEnabled: false, BlockingMode: state.BlockAlways, CurrentTaskName: "write"}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := m.Load()
	if !slices.Equal(got.Blocklist, want.Blocklist) || got.BlockingEnabled || got.BlockingMode != state.BlockAlways || got.CurrentTaskName != "write" {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestMirrorWatchSkipsOwnWrites(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(filepath.Join(dir, "blocker.json"), quiet)

	changes := make(chan MirrorState, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, func(ms MirrorState) { changes <- ms })
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := m.Save(MirrorState{Blocklist: []string{"own.com"}, BlockingEnabled: true, BlockingMode: state.BlockAlways}); err != nil {
		t.Fatal(err)
	}
	external := `{"blocklist":["other.com"],"blockingEnabled":true,"blockingMode":"always"}`
	if err := atomicfile.Write(m.Path(), []byte(external)); err != nil {
		t.Fatal(err)
	}

	select {
	case ms := <-changes:
		if !slices.Equal(ms.Blocklist, []string{"other.com"}) {
			t.Errorf("first change = %v, want the external write", ms.Blocklist)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("external change not reported")
	}
}

func TestDaemonMessages(t *testing.T) {
	dir := t.TempDir()
	rules := NewFileRuleStore(filepath.Join(dir, "rules.json"))
	mirror := NewMirror(filepath.Join(dir, "blocker.json"), quiet)
	sched := startScheduler(t, rules)
	d := NewDaemon(sched, mirror, quiet)
	ctx := context.Background()

	err := d.RulesChanged(ctx, bridge.RulesChanged{
		Blocklist:       []string{"https://www.Reddit.com/r/all", "reddit.com", "news.com"},
		BlockingEnabled: true,
		BlockingMode:    state.BlockDuringWork,
		CurrentTaskName: "essay",
	})
	if err != nil {
		t.Fatalf("RulesChanged: %v", err)
	}
	ms := mirror.Load()
	if !slices.Equal(ms.Blocklist, []string{"reddit.com", "news.com"}) || ms.CurrentTaskName != "essay" {
		t.Errorf("mirror = %+v", ms)
	}

	if info, _ := d.GetTimerState(ctx); info != nil {
		t.Errorf("GetTimerState before any update = %+v, want nil", info)
	}
	if err := d.TimerState(ctx, bridge.TimerUpdate{IsWorking: true, Mode: state.ModeWork, RemainingSeconds: 1500, EndTime: 1234}); err != nil {
		t.Fatal(err)
	}
	info, _ := d.GetTimerState(ctx)
	if info == nil || info.EndTime != 1234 || info.Mode != state.ModeWork {
		t.Errorf("GetTimerState = %+v", info)
	}
	if !d.Working() || !sched.SessionActive() {
		t.Error("work session should be active")
	}

	// Barrier: once this rewrite is done, the session rewrite ran too.
	if err := waitDone(t, sched.ScheduleUpdate(ms.Request())); err != nil {
		t.Fatal(err)
	}
	got, _ := rules.Rules(ctx)
	if len(got) != 2 {
		t.Errorf("rules during work = %d, want 2", len(got))
	}

	d.TimerState(ctx, bridge.TimerUpdate{IsWorking: false, Mode: state.ModeShortBreak})
	if info, _ := d.GetTimerState(ctx); info != nil {
		t.Errorf("GetTimerState after stop = %+v, want nil", info)
	}
	if err := waitDone(t, sched.ScheduleUpdate(ms.Request())); err != nil {
		t.Fatal(err)
	}
	got, _ = rules.Rules(ctx)
	if len(got) != 0 {
		t.Errorf("rules during break = %d, want 0", len(got))
	}
}

func TestMirrorForDefaultsMode(t *testing.T) {
	ms := MirrorFor(bridge.RulesChanged{Blocklist: []string{"WWW.Example.com/x", "example.com"}})
	if !slices.Equal(ms.Blocklist, []string{"example.com"}) {
		t.Errorf("Blocklist = %v", ms.Blocklist)
	}
	if ms.BlockingMode != state.BlockDuringWork || ms.BlockingEnabled {
		t.Errorf("mode %q enabled %v", ms.BlockingMode, ms.BlockingEnabled)
	}
}
