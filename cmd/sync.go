package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/state"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local state with the remote server and push the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sum bridge.SyncSummary
		err := callTimer(cmd.Context(), bridge.ActionResync, nil, &sum, cfg.FetchTimeout()+editTimeout)
		switch {
		case errors.Is(err, bridge.ErrUnavailable):
			snap, err := withState(cmd.Context(), func(*state.Snapshot) error { return nil })
			if err != nil {
				return err
			}
			sum = bridge.SummaryOf(snap)
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		if cfg.RemoteURL == "" {
			fmt.Fprintln(out, "no remote configured; local state only")
		} else {
			fmt.Fprintf(out, "synced with %s\n", cfg.RemoteURL)
		}
		fmt.Fprintf(out, "%d task(s), %d session(s), %d pomodoro(s) total\n",
			sum.Tasks, sum.Sessions, sum.Pomodoros)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
