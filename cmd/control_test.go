package cmd

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fakeyudi/pomosync/internal/blocker"
	"github.com/fakeyudi/pomosync/internal/pomodoro"
	"github.com/fakeyudi/pomosync/internal/state"
)

// startTimer runs a controller with its control socket the way pomo run
// does, against the isolated data directory. The returned stop shuts it
// down with a final save; it also runs at cleanup.
func startTimer(t *testing.T) (*pomodoro.Controller, func()) {
	t.Helper()
	activeProfile = nil
	if err := loadConfig(); err != nil {
		t.Fatal(err)
	}
	tiers, err := openTiers()
	if err != nil {
		t.Fatal(err)
	}
	c := pomodoro.New(pomodoro.Options{Persistence: tiers.orch, Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	c.Boot(ctx)

	served := make(chan error, 1)
	go func() { served <- newControlServer(c).Serve(ctx) }()
	stop := sync.OnceFunc(func() {
		cancel()
		<-served
		c.Shutdown(context.Background())
		tiers.Close()
	})
	t.Cleanup(stop)

	waitFor(t, func() bool { return timerRunning(context.Background()) })
	return c, stop
}

func TestTaskAddWhileTimerRunsSurvivesShutdown(t *testing.T) {
	isolate(t)
	c, stop := startTimer(t)

	out, err := executeCommand(rootCmd, "task", "add", "shared", "work")
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	if !strings.Contains(out, "added task 1: shared work") {
		t.Errorf("add output = %q", out)
	}
	if snap := c.Snapshot(); len(snap.Tasks) != 1 {
		t.Fatalf("running timer tasks = %+v", snap.Tasks)
	}
	if snap := storedSnapshot(t); len(snap.Tasks) != 1 {
		t.Errorf("edit not written before the command returned: %+v", snap.Tasks)
	}

	// The timer keeps working and then saves its own state on exit.
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * cfg.Debounce())
	stop()

	snap := storedSnapshot(t)
	if len(snap.Tasks) != 1 || snap.Tasks[0].Name != "shared work" {
		t.Errorf("stored tasks after timer exit = %+v", snap.Tasks)
	}
	if snap.TimerEndTime == nil {
		t.Error("timer deadline lost on exit")
	}
}

func TestEditErrorFromRunningTimer(t *testing.T) {
	isolate(t)
	c, _ := startTimer(t)

	_, err := executeCommand(rootCmd, "task", "select", "9")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("select unknown task: err = %v", err)
	}
	if _, err := executeCommand(rootCmd, "block", "mode", "sometimes"); err == nil {
		t.Error("bad blocking mode accepted")
	}
	if snap := c.Snapshot(); snap.CurrentTaskID != nil || snap.Settings.BlockingMode != state.BlockDuringWork {
		t.Errorf("failed edits changed state: %+v", snap.Settings)
	}
}

func TestBlockWhileTimerRuns(t *testing.T) {
	dataDir := isolate(t)
	c, _ := startTimer(t)

	out, err := executeCommand(rootCmd, "block", "add", "www.example.com", "news.site")
	if err != nil {
		t.Fatalf("block add: %v", err)
	}
	if !strings.Contains(out, "blocking 2 domain(s)") {
		t.Errorf("output = %q", out)
	}
	want := []string{"example.com", "news.site"}
	if got := c.Snapshot().Settings.Blocklist; !slices.Equal(got, want) {
		t.Errorf("timer blocklist = %v", got)
	}
	// No daemon is listening, so its mirror carries the change.
	ms := blocker.NewMirror(filepath.Join(dataDir, "blocker.json"), nil).Load()
	if !slices.Equal(ms.Blocklist, want) {
		t.Errorf("mirror blocklist = %v", ms.Blocklist)
	}
}

func TestSyncWhileTimerRuns(t *testing.T) {
	isolate(t)
	startTimer(t)

	if _, err := executeCommand(rootCmd, "task", "add", "review"); err != nil {
		t.Fatal(err)
	}
	out, err := executeCommand(rootCmd, "sync")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "1 task(s), 0 session(s)") {
		t.Errorf("sync output = %q", out)
	}
}

func TestSecondRunRefused(t *testing.T) {
	isolate(t)
	startTimer(t)
	t.Cleanup(func() { runPlain = false })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runCmd.SetContext(ctx)
	_, err := executeCommand(rootCmd, "run", "--plain")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("second run: err = %v", err)
	}
}
