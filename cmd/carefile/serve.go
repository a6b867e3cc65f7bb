package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carefile/carefile/internal/config"
	"github.com/carefile/carefile/internal/home"
	"github.com/carefile/carefile/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the carefile server",
	Long: `Start the carefile HTTP server.

The server opens the SQLite database under the home directory, seeds the
required departments, and serves the records API. Configuration changes to
config.yaml are picked up without a restart.

Examples:
  carefile serve                 # Start on the configured port
  carefile serve --port 3000     # Start on a custom port
  carefile serve --host 0.0.0.0  # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" && h.ConfigExists() {
			path = h.ConfigPath()
		}
		cm, err := config.NewManager(path)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
