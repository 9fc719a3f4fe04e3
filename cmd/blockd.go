package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/blocker"
	"github.com/fakeyudi/pomosync/internal/bridge"
)

var blockdRules string

var blockdCmd = &cobra.Command{
	Use:   "blockd",
	Short: "Run the blocking daemon that turns the blocklist into redirect rules",
	Long: `Run the blocking daemon in the foreground.

The daemon listens on a Unix socket for blocklist and timer updates from
'pomo run' and the block commands, keeps its own copy of the blocklist in
the data directory, and rewrites the rule file whenever the desired rule
set changes. Edits to the copied blocklist made while the daemon is
running are picked up automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newDaemonLogger(cmd)

		rulesPath := cfg.RulesPath
		if blockdRules != "" {
			rulesPath = blockdRules
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}

		scheduler := blocker.NewScheduler(blocker.NewFileRuleStore(rulesPath), log)
		mirror := blocker.NewMirror(cfg.MirrorPath(), log)
		daemon := blocker.NewDaemon(scheduler, mirror, log)
		server := bridge.NewServer(cfg.SocketPath, daemon, log)

		log.Info("starting blocking daemon", "rules", rulesPath, "mirror", mirror.Path())

		daemonDone := make(chan error, 1)
		go func() {
			daemonDone <- daemon.Run(ctx)
		}()
		socketDone := make(chan error, 1)
		go func() {
			socketDone <- server.Serve(ctx)
		}()

		// Either side failing takes the other down with it.
		var daemonErr, socketErr error
		select {
		case daemonErr = <-daemonDone:
			stop()
			socketErr = <-socketDone
		case socketErr = <-socketDone:
			stop()
			daemonErr = <-daemonDone
		}
		return errors.Join(daemonErr, socketErr)
	},
}

func init() {
	blockdCmd.Flags().StringVar(&blockdRules, "rules", "", "rule file to maintain (default <data dir>/rules.json)")
	rootCmd.AddCommand(blockdCmd)
}
