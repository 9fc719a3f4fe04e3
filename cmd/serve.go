package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/stateserver"
)

var (
	serveListen string
	serveDB     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the remote state server other devices sync against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newDaemonLogger(cmd)

		address := cfg.ListenAddr
		if serveListen != "" {
			address = serveListen
		}
		dbPath := cfg.ServerDB
		if serveDB != "" {
			dbPath = serveDB
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}

		db, err := stateserver.OpenDB(dbPath)
		if err != nil {
			return fmt.Errorf("opening state database: %w", err)
		}
		defer db.Close()

		log.Info("starting state server", "db", dbPath)
		server := stateserver.NewServer(address, stateserver.NewHandler(db, log), log)
		return server.Serve(ctx)
	},
}

// newDaemonLogger switches long-running commands to JSON logs on stderr at
// Info, or Debug with --verbose.
func newDaemonLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (default from config, 127.0.0.1:8787)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "state database path (default <data dir>/server.db)")
	rootCmd.AddCommand(serveCmd)
}
