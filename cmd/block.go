package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/blocker"
	"github.com/fakeyudi/pomosync/internal/bridge"
	"github.com/fakeyudi/pomosync/internal/edit"
	"github.com/fakeyudi/pomosync/internal/state"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage the blocklist enforced by the blocking daemon",
}

var blockAddCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := applyEdit(cmd.Context(), edit.Edit{Kind: edit.BlockAdd, Values: args})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "blocking %d domain(s)\n", res.Blocked)
		return nil
	},
}

var blockRemoveCmd = &cobra.Command{
	Use:     "rm <domain>",
	Aliases: []string{"remove"},
	Short:   "Remove a domain from the blocklist",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := applyEdit(cmd.Context(), edit.Edit{Kind: edit.BlockRemove, Values: args})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", res.Domain)
		return nil
	},
}

var blockListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the blocklist and when it is enforced",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := readState(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printBlocking(out, snap.Settings)
		for _, d := range snap.Settings.Blocklist {
			fmt.Fprintf(out, "  %s\n", d)
		}
		return nil
	},
}

var blockEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn site blocking on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBlockingEnabled(cmd, true)
	},
}

var blockDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn site blocking off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBlockingEnabled(cmd, false)
	},
}

var blockModeCmd = &cobra.Command{
	Use:       "mode <always|work>",
	Short:     "Block always, or only while a work session is running",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(state.BlockAlways), string(state.BlockDuringWork)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := state.BlockingMode(args[0])
		if _, err := applyEdit(cmd.Context(), edit.Edit{Kind: edit.BlockMode, Mode: mode}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "blocking %s\n", blockingModeLabel(mode))
		return nil
	},
}

func setBlockingEnabled(cmd *cobra.Command, enabled bool) error {
	if _, err := applyEdit(cmd.Context(), edit.Edit{Kind: edit.BlockEnable, Enabled: enabled}); err != nil {
		return err
	}
	if enabled {
		fmt.Fprintln(cmd.OutOrStdout(), "blocking enabled")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "blocking disabled")
	}
	return nil
}

// notifyDaemon sends msg to a running daemon. When none is listening the
// daemon's mirror file is written instead so the next daemon start applies
// the new rules.
func notifyDaemon(ctx context.Context, msg bridge.RulesChanged) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err := bridge.NewClient(cfg.SocketPath).RulesChanged(ctx, msg)
	if err == nil {
		return
	}
	if !errors.Is(err, bridge.ErrUnavailable) {
		logger.Warn("notifying blocking daemon", "error", err)
		return
	}
	logger.Debug("blocking daemon not running, writing mirror", "path", cfg.MirrorPath())
	if err := blocker.NewMirror(cfg.MirrorPath(), logger).Save(blocker.MirrorFor(msg)); err != nil {
		logger.Warn("writing blocker mirror", "error", err)
	}
}

func init() {
	blockCmd.AddCommand(blockAddCmd, blockRemoveCmd, blockListCmd,
		blockEnableCmd, blockDisableCmd, blockModeCmd)
	rootCmd.AddCommand(blockCmd)
}
