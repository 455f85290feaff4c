package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/newsfeed/internal/control"
	"github.com/vietddude/newsfeed/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "newsfeed",
	Short: "Newsfeed data service",
	Long:  `Newsfeed fetches paginated news from the upstream provider through a durable response cache and serves the feed to the app.`,
	Run:   runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads .env and the config file, then installs the logger.
// A missing config file falls back to defaults and the environment.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize newsfeed", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start newsfeed", "error", err)
		os.Exit(1)
	}

	slog.Info("Newsfeed started", "config", cfgPath, "port", cfg.Server.Port, "store", cfg.Store.Driver)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}

// withApp builds the application for a one-shot command and closes it
// afterwards, exiting non-zero if anything failed.
func withApp(fn func(ctx context.Context, app *control.App) error) {
	if err := runWithApp(context.Background(), loadConfig(), fn); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// runWithApp runs fn against a freshly built application. The application
// is closed before returning, whether fn failed or not.
func runWithApp(ctx context.Context, cfg *config.AppConfig, fn func(ctx context.Context, app *control.App) error) error {
	app, err := control.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize newsfeed: %w", err)
	}

	runErr := fn(ctx, app)
	if err := app.Close(); err != nil {
		slog.Warn("Failed to close newsfeed", "error", err)
	}
	return runErr
}
