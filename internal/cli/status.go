package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/newsfeed/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store, cache and upstream status",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	withApp(func(ctx context.Context, app *control.App) error {
		report := app.Health().CheckHealth(ctx)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
		for _, name := range []string{"upstream", "store", "cache"} {
			c, ok := report.Components[name]
			if !ok {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, c.Status, c.Detail)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", "system", report.SystemStatus, "")
		_ = w.Flush()

		cfg := app.Config()
		fmt.Printf("\nstore=%s prefix=%s ttl=%s coalesce=%t\n",
			cfg.Store.Driver, cfg.Cache.Prefix, cfg.Cache.TTL, cfg.Cache.Coalesce)
		return nil
	})
}
