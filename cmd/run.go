package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/pomodoro"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/tui"
)

var (
	runPlain bool
	runStart bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pomodoro timer",
	Long: `Run the pomodoro timer in the foreground.

On a terminal this opens the interactive timer. With --plain, or when
stdout is not a terminal, the remaining time is printed once per second
instead. A timer left running by an earlier process is resumed.

While it runs, task and block commands from other shells are applied by
this process, so nothing they change is overwritten when it exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// One timer per data directory; a second one would overwrite the
		// first one's state with its own.
		if timerRunning(ctx) {
			return fmt.Errorf("a timer is already running for %s", cfg.DataDir)
		}

		t, err := openTiers()
		if err != nil {
			return err
		}
		defer t.Close()

		notifier := bridge.NewNotifier(bridge.NewClient(cfg.SocketPath), logger)
		defer notifier.Close(time.Second)

		c := pomodoro.New(pomodoro.Options{
			Persistence: t.orch,
			Notifier:    notifier,
			Logger:      logger,
		})
		c.Boot(ctx)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout())
			defer cancel()
			c.Shutdown(shutdownCtx)
		}()

		// Deferred after Shutdown so it runs first: no edit may land after
		// the final save.
		serveCtx, stopServe := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() {
			served <- newControlServer(c).Serve(serveCtx)
		}()
		defer func() {
			stopServe()
			if err := <-served; err != nil {
				logger.Warn("control socket", "error", err)
			}
		}()

		if runStart && !c.Running() {
			if err := c.Start(); err != nil {
				return err
			}
		}

		if runPlain || !term.IsTerminal(os.Stdout.Fd()) {
			return printTimer(ctx, cmd.OutOrStdout(), c)
		}
		return tui.Run(c)
	},
}

// printTimer writes one line per displayed second or phase change until
// ctx is cancelled.
func printTimer(ctx context.Context, out io.Writer, c *pomodoro.Controller) error {
	changed := make(chan struct{}, 1)
	c.OnUpdate(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer c.OnUpdate(nil)

	lastMode, lastRemaining := state.Mode(""), -1
	show := func() {
		mode, remaining := c.Mode(), c.Remaining()
		if mode == lastMode && remaining == lastRemaining {
			return
		}
		lastMode, lastRemaining = mode, remaining
		status := "paused"
		if c.Running() {
			status = "running"
		}
		fmt.Fprintf(out, "%-11s %s  %s\n", mode, tui.FormatClock(remaining), status)
	}

	show()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			show()
		}
	}
}

func init() {
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print the countdown instead of the interactive view")
	runCmd.Flags().BoolVar(&runStart, "start", false, "start the current phase immediately")
	rootCmd.AddCommand(runCmd)
}
