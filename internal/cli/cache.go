package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vietddude/newsfeed/internal/control"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *control.App) error {
			removed, err := app.Cache().Clear(ctx)
			if err != nil {
				return err
			}
			slog.Info("Cache cleared", "removed", removed)
			return nil
		})
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove cached responses older than cache.retention",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *control.App) error {
			retention := app.Config().Cache.Retention
			if retention <= 0 {
				slog.Warn("cache.retention is not set, nothing to sweep")
				return nil
			}
			removed, err := app.Cache().Sweep(ctx, retention)
			if err != nil {
				return err
			}
			slog.Info("Cache swept", "removed", removed, "retention", retention)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheSweepCmd)
	rootCmd.AddCommand(cacheCmd)
}
