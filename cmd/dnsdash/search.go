package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/term"
	"github.com/jroosing/dnsdash/internal/view"
)

var searchFlags struct {
	page  int
	theme string
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search domains and resolve the matches",
	Long: `Search the telemetry backend for domains containing term. The backend
resolves each match live; the status, records and lookup time are printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchFlags.page, "page", 1, "Result page")
	searchCmd.Flags().StringVar(&searchFlags.theme, "theme", "system", "Color theme (light, dark, system)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	resolved, err := terminalTheme(searchFlags.theme)
	if err != nil {
		return err
	}
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return fmt.Errorf("search term is empty")
	}

	client := backend.New(cfg.Backend, logger, nil)
	dash := dashboard.New(client, cfg.Dashboard, dashboard.WithLogger(logger))
	defer dash.Close()

	ctx := cmd.Context()
	if err := dash.Search(ctx, q); err != nil {
		return err
	}
	for page := 1; page < searchFlags.page; page++ {
		if err := dash.SearchPage(ctx, 1); err != nil {
			return err
		}
	}

	v := view.Build(dash.Snapshot(), nil, view.Options{Title: cfg.Dashboard.Title, Theme: resolved, Now: time.Now()})
	fmt.Fprintln(cmd.OutOrStdout(), term.RenderSearch(v.Search, resolved))
	return nil
}
