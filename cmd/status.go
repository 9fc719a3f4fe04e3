package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/clock"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/stats"
	"github.com/fakeyudi/pomosync/internal/store"
	"github.com/fakeyudi/pomosync/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer, today's progress and the blocking daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snap, err := readState(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		out := cmd.OutOrStdout()

		timer := store.NewTimerFile(cfg.TimerPath(), clock.Real())
		ts, err := timer.Load()
		switch {
		case err != nil:
			fmt.Fprintf(out, "Timer:     %s, not running\n", snap.Mode)
		case ts.Deadline().After(now):
			left := int(ts.Deadline().Sub(now).Round(time.Second) / time.Second)
			fmt.Fprintf(out, "Timer:     %s running, %s left (ends %s)\n",
				ts.Mode, tui.FormatClock(left), ts.Deadline().Format("15:04"))
		default:
			fmt.Fprintf(out, "Timer:     %s finished at %s, completes on next run\n",
				ts.Mode, ts.Deadline().Format("15:04"))
		}

		printSummary(out, stats.Today(snap, now))
		printBlocking(out, snap.Settings)
		printDaemon(ctx, out)
		return nil
	},
}

func printSummary(out io.Writer, sum stats.Summary) {
	fmt.Fprintf(out, "Today:     %d/%d pomodoros, %d min focus\n", sum.Pomodoros, sum.DailyGoal, sum.FocusMinutes)
	fmt.Fprintf(out, "Streak:    %d day(s)\n", sum.Streak)
	fmt.Fprintf(out, "Tasks:     %d open, %d done\n", sum.OpenTasks, sum.CompletedTasks)
	if sum.CurrentTask != "" {
		fmt.Fprintf(out, "Current:   %s\n", sum.CurrentTask)
	}
}

func printBlocking(out io.Writer, s state.Settings) {
	if !s.BlockingEnabled {
		fmt.Fprintf(out, "Blocking:  disabled, %d domain(s)\n", len(s.Blocklist))
		return
	}
	fmt.Fprintf(out, "Blocking:  %s, %d domain(s)\n", blockingModeLabel(s.BlockingMode), len(s.Blocklist))
}

func printDaemon(ctx context.Context, out io.Writer) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	info, err := bridge.NewClient(cfg.SocketPath).GetTimerState(ctx)
	switch {
	case errors.Is(err, bridge.ErrUnavailable):
		fmt.Fprintln(out, "Daemon:    not running")
	case err != nil:
		fmt.Fprintf(out, "Daemon:    error: %v\n", err)
	case info == nil:
		fmt.Fprintln(out, "Daemon:    running, timer idle")
	default:
		fmt.Fprintf(out, "Daemon:    running, %s until %s\n", info.Mode, time.UnixMilli(info.EndTime).Format("15:04"))
	}
}

func blockingModeLabel(m state.BlockingMode) string {
	if m == state.BlockAlways {
		return "always"
	}
	return "during work"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
