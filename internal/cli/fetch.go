package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/newsfeed/internal/control"
	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

var (
	pageCategory string
	pageNumber   int
	pageForce    bool
	headForce    bool
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Fetch one page of a category through the cache",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *control.App) error {
			category := domain.ParseCategory(pageCategory)
			items, err := app.Provider().Page(ctx, category, pageNumber, pageForce)
			if err != nil {
				return explain(err)
			}
			printArticles(os.Stdout, items)
			return nil
		})
	},
}

var headlinesCmd = &cobra.Command{
	Use:   "headlines",
	Short: "Fetch the headline stream through the cache",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *control.App) error {
			items, err := app.Provider().Headlines(ctx, headForce)
			if err != nil {
				return explain(err)
			}
			printArticles(os.Stdout, items)
			return nil
		})
	},
}

func init() {
	pageCmd.Flags().StringVar(&pageCategory, "category", "all", "category slug")
	pageCmd.Flags().IntVar(&pageNumber, "page", 1, "page number (1-based)")
	pageCmd.Flags().BoolVar(&pageForce, "force", false, "bypass cache freshness")
	headlinesCmd.Flags().BoolVar(&headForce, "force", false, "bypass cache freshness")
	rootCmd.AddCommand(pageCmd, headlinesCmd)
}

func explain(err error) error {
	ex := fetch.Explain(err)
	return fmt.Errorf("%s: %s (%w)", ex.Title, ex.Message, err)
}

func printArticles(out io.Writer, items []domain.Article) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "PUBLISHED\tCATEGORY\tSOURCE\tTITLE")
	for _, a := range items {
		published := "-"
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", published, a.PrimaryCategory(), a.Source, a.Title)
	}
	_ = w.Flush()
}
