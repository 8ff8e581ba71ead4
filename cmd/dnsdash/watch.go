package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/counter"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/term"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/jroosing/dnsdash/internal/view"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\x1b[H\x1b[2J"

var watchFlags struct {
	tab      string
	client   string
	domain   string
	interval int
	theme    string
	once     bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Draw the dashboard in the terminal",
	Long: `Draw the dashboard in the terminal and redraw it as data arrives.

Auto refresh follows the dashboard settings; --interval overrides the
interval (5, 10, 30, 60 or 300 seconds, 0 disables auto refresh). When
stdout is not a terminal, or with --once, the dashboard is drawn once after
the first refresh.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.tab, "tab", string(dashboard.TabOverview), "Tab to show (overview, domains, clients, blocked, queries)")
	watchCmd.Flags().StringVar(&watchFlags.client, "client", "", "Select a client and show its queries")
	watchCmd.Flags().StringVar(&watchFlags.domain, "domain", "", "Select a domain and show the clients that queried it")
	watchCmd.Flags().IntVar(&watchFlags.interval, "interval", -1, "Auto refresh interval in seconds (0 disables)")
	watchCmd.Flags().StringVar(&watchFlags.theme, "theme", string(theme.System), "Color theme (light, dark, system)")
	watchCmd.Flags().BoolVar(&watchFlags.once, "once", false, "Draw once and exit")
}

// terminalTheme resolves a theme flag, asking the terminal for system.
func terminalTheme(s string) (theme.Resolved, error) {
	p, err := theme.Parse(s)
	if err != nil {
		return "", err
	}
	if p != theme.System {
		return theme.Resolve(p, false), nil
	}
	return theme.Resolve(p, lipgloss.HasDarkBackground()), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	resolved, err := terminalTheme(watchFlags.theme)
	if err != nil {
		return err
	}
	tab, ok := dashboard.ParseTab(watchFlags.tab)
	if !ok {
		return fmt.Errorf("unknown tab %q", watchFlags.tab)
	}

	dashCfg := cfg.Dashboard
	switch {
	case watchFlags.interval == 0:
		dashCfg.AutoRefresh = false
	case watchFlags.interval > 0:
		if !config.ValidRefreshInterval(watchFlags.interval) {
			return fmt.Errorf("interval must be one of %v", config.RefreshIntervals)
		}
		dashCfg.AutoRefresh = true
		dashCfg.RefreshIntervalSeconds = watchFlags.interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(cfg.Backend, logger, nil)

	changed := make(chan struct{}, 1)
	dash := dashboard.New(client, dashCfg,
		dashboard.WithLogger(logger),
		dashboard.WithOnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	)
	defer dash.Close()

	if err := dash.SetTab(tab); err != nil {
		return err
	}
	if err := loadInitial(ctx, dash); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fd := int(os.Stdout.Fd())
	opts := view.Options{Title: dashCfg.Title, Theme: resolved}

	if watchFlags.once || !term.IsTerminal(fd) {
		st := dash.Snapshot()
		opts.Now = time.Now()
		_, err := fmt.Fprintln(out, term.Render(view.Build(st, view.Targets(st), opts), term.Width(fd)))
		return err
	}

	coord := refresh.New(dash.Tick, refresh.WithLogger(logger))
	defer coord.Stop()
	st := dash.Snapshot()
	coord.Configure(st.AutoRefresh, time.Duration(st.RefreshInterval)*time.Second)

	return redrawLoop(ctx, out, fd, dash, counter.NewSet(dashCfg.CounterDurationValue()), opts, changed)
}

// loadInitial runs the first batch and the selected details together.
func loadInitial(ctx context.Context, dash *dashboard.Dashboard) error {
	errCh := make(chan error, 3)
	go func() { errCh <- dash.Refresh(ctx) }()
	go func() {
		if watchFlags.client == "" {
			dash.RefreshDetails(ctx)
			errCh <- nil
			return
		}
		errCh <- dash.SelectClient(ctx, watchFlags.client)
	}()
	go func() {
		if watchFlags.domain == "" {
			errCh <- nil
			return
		}
		errCh <- dash.SelectDomain(ctx, watchFlags.domain)
	}()

	var errs []error
	for range 3 {
		errs = append(errs, <-errCh)
	}
	return errors.Join(errs...)
}

func redrawLoop(ctx context.Context, out io.Writer, fd int, dash *dashboard.Dashboard,
	counters *counter.Set, opts view.Options, changed <-chan struct{}) error {
	frame := time.NewTicker(cfg.Sessions.FrameIntervalDuration())
	defer frame.Stop()

	draw := func(now time.Time) error {
		st := dash.Snapshot()
		opts.Now = now
		v := view.Build(st, counters.Values(now), opts)
		_, err := fmt.Fprint(out, clearScreen+term.Render(v, term.Width(fd)))
		return err
	}

	now := time.Now()
	counters.Update(view.Targets(dash.Snapshot()), now)
	if err := draw(now); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case <-changed:
			now := time.Now()
			counters.Update(view.Targets(dash.Snapshot()), now)
			if err := draw(now); err != nil {
				return err
			}
		case now := <-frame.C:
			if !counters.Animating(now) {
				continue
			}
			if err := draw(now); err != nil {
				return err
			}
		}
	}
}
