package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/clock"
	"github.com/fakeyudi/pomosync/internal/config"
	"github.com/fakeyudi/pomosync/internal/profile"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/store"
	"github.com/fakeyudi/pomosync/internal/syncer"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded user profile, nil when none exists.
var activeProfile *profile.Profile

// logger is the command-line logger; daemons replace it with a JSON one.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

var verbose bool

// interactive reports whether first-run setup may prompt on stdin.
var interactive = func() bool { return term.IsTerminal(os.Stdin.Fd()) }

var rootCmd = &cobra.Command{
	Use:          "pomo",
	Short:        "Pomodoro timer with cross-device state sync and site blocking",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newTextLogger(cmd.ErrOrStderr())

		// First run on an interactive terminal: walk through setup.
		// Non-interactive callers continue without a profile.
		if !profile.Exists() && interactive() {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to pomosync! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		return loadConfig()
	},
}

// loadConfig merges the config files, applies the environment and fills
// derived paths. The profile's remote is used when no file names one.
func loadConfig() error {
	global, err := config.LoadGlobal()
	if err != nil {
		return fmt.Errorf("loading global config: %w", err)
	}
	project, err := config.LoadProject()
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	cfg = config.Merge(global, project)
	if cfg.RemoteURL == "" && activeProfile != nil {
		cfg.RemoteURL = activeProfile.RemoteURL
	}
	cfg.ApplyEnv()
	return cfg.Resolve()
}

func newTextLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// deviceID identifies this device to the remote tier.
func deviceID() string {
	if activeProfile != nil {
		return activeProfile.DeviceID
	}
	return ""
}

// tiers is the set of persistence tiers one command works against.
type tiers struct {
	local *store.LocalStore
	timer *store.TimerFile
	orch  *syncer.Orchestrator
}

// openTiers opens the local database and wires the orchestrator over the
// local, remote (when configured) and ephemeral tiers.
func openTiers() (*tiers, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	local, err := store.NewLocalStore(cfg.LocalDB(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	timer := store.NewTimerFile(cfg.TimerPath(), clock.Real())

	opts := syncer.Options{
		Local:        local,
		Ephemeral:    timer,
		Logger:       logger,
		Debounce:     cfg.Debounce(),
		FetchTimeout: cfg.FetchTimeout(),
	}
	if cfg.RemoteURL != "" {
		opts.Remote = store.NewRemoteClient(cfg.RemoteURL, deviceID(), &http.Client{})
	}
	return &tiers{local: local, timer: timer, orch: syncer.New(opts)}, nil
}

func (t *tiers) Close() error { return t.local.Close() }

// withState runs the startup reconciliation, applies fn to the result and
// writes it back through every tier before returning. fn returning an error
// leaves the stored state untouched.
func withState(ctx context.Context, fn func(s *state.Snapshot) error) (state.Snapshot, error) {
	t, err := openTiers()
	if err != nil {
		return state.Snapshot{}, err
	}
	defer t.Close()

	snap := t.orch.Startup(ctx)
	if err := fn(&snap); err != nil {
		return snap, err
	}
	snap = state.Normalize(snap)
	t.orch.SaveNow(ctx, snap)
	t.orch.Shutdown(ctx)
	return snap, nil
}

// readState returns the local snapshot without contacting the remote.
func readState(ctx context.Context) (state.Snapshot, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return state.Snapshot{}, fmt.Errorf("creating data dir: %w", err)
	}
	local, err := store.NewLocalStore(cfg.LocalDB(), logger)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("opening local store: %w", err)
	}
	defer local.Close()
	snap, _ := local.Load(ctx)
	return snap, nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile.
func GetProfile() *profile.Profile {
	return activeProfile
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}
