// Package term renders the dashboard view tree for a terminal.
package term

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/jroosing/dnsdash/internal/view"
)

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 100

const minWidth = 60

type palette struct {
	title   lipgloss.Style
	header  lipgloss.Style
	card    lipgloss.Style
	value   lipgloss.Style
	accent  lipgloss.Style
	muted   lipgloss.Style
	bar     lipgloss.Style
	sel     lipgloss.Style
	blocked lipgloss.Style
}

func newPalette(t theme.Resolved) palette {
	fg, dim, border, accent := lipgloss.Color("235"), lipgloss.Color("244"), lipgloss.Color("250"), lipgloss.Color("25")
	if t == theme.ResolvedDark {
		fg, dim, border, accent = lipgloss.Color("252"), lipgloss.Color("240"), lipgloss.Color("238"), lipgloss.Color("86")
	}
	return palette{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		value:   lipgloss.NewStyle().Bold(true).Foreground(fg),
		accent:  lipgloss.NewStyle().Foreground(accent),
		muted:   lipgloss.NewStyle().Foreground(dim),
		bar:     lipgloss.NewStyle().Foreground(accent),
		sel:     lipgloss.NewStyle().Bold(true).Reverse(true),
		blocked: lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
}

// Render draws v at the given terminal width.
func Render(v view.View, width int) string {
	if width < minWidth {
		width = minWidth
	}
	p := newPalette(v.Header.Theme)
	var b strings.Builder

	b.WriteString(renderHeader(p, v.Header, width))
	b.WriteString("\n")
	b.WriteString(renderCards(p, v.Stats.Cards, width))
	b.WriteString("\n")

	switch activeTab(v) {
	case dashboard.TabDomains:
		b.WriteString(renderBars(p, "Top Domains", v.TopDomains, width))
		b.WriteString(renderDomainDetail(p, v.DomainDetail))
	case dashboard.TabClients:
		b.WriteString(renderClients(p, v.Clients))
		b.WriteString(renderClientDetail(p, v.ClientDetail))
	case dashboard.TabBlocked:
		b.WriteString(renderBlocked(p, v.Blocked, true))
	case dashboard.TabQueries:
		b.WriteString(renderQueries(p, "All DNS Queries", v.RecentQueries.Rows, v.RecentQueries.Pager))
	case dashboard.TabSearch:
		b.WriteString(RenderSearch(v.Search, v.Header.Theme))
	default:
		b.WriteString(renderQueryTypes(p, v.QueryTypes))
		b.WriteString(renderBars(p, "Top Domains", v.TopDomainsOverview, width))
		b.WriteString(renderBlocked(p, v.BlockedOverview, false))
		if v.ClientDetail.Selected {
			b.WriteString(renderClientDetail(p, v.ClientDetail))
		} else {
			b.WriteString(renderQueries(p, "Recent Queries", v.RecentQueries.Rows, v.RecentQueries.Pager))
		}
	}
	return b.String()
}

func activeTab(v view.View) dashboard.Tab {
	for _, t := range v.Tabs {
		if t.Active {
			return t.ID
		}
	}
	return dashboard.TabOverview
}

func renderHeader(p palette, h view.Header, width int) string {
	left := p.title.Render(h.Title) + " " + p.muted.Render(h.Subtitle)

	refresh := "auto refresh off"
	if h.AutoRefresh {
		for _, o := range h.Intervals {
			if o.Selected {
				refresh = "every " + o.Label
			}
		}
	}
	status := "updated " + h.LastUpdated
	if h.Loading {
		status = "loading..."
	}
	right := p.muted.Render(status + " | " + refresh)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + "\n" + right + "\n"
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func renderCards(p palette, cards []view.StatCard, width int) string {
	if len(cards) == 0 {
		return ""
	}
	cardWidth := width/len(cards) - 4
	if cardWidth < 14 {
		cardWidth = 14
	}
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		body := p.muted.Render(c.Label) + "\n" + p.value.Render(c.Value) + "\n" + p.muted.Render(c.Note)
		rendered = append(rendered, p.card.Width(cardWidth).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func renderQueryTypes(p palette, rows []view.QueryTypeRow) string {
	var b strings.Builder
	b.WriteString(p.header.Render("Query Types Distribution") + "\n")
	if len(rows) == 0 {
		b.WriteString(p.muted.Render("  no data") + "\n")
		return b.String()
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %-10s %12s %6s%%\n", r.Type, r.Display, r.Percent)
	}
	return b.String()
}

// barCells is the number of block characters for a width percentage.
func barCells(width float64, maxCells int) int {
	n := int(width / 100 * float64(maxCells))
	if n < 0 {
		return 0
	}
	if n > maxCells {
		return maxCells
	}
	if n == 0 && width > 0 {
		return 1
	}
	return n
}

func renderBars(p palette, title string, rows []view.BarRow, width int) string {
	var b strings.Builder
	b.WriteString(p.header.Render(title) + "\n")
	if len(rows) == 0 {
		b.WriteString(p.muted.Render("  no data") + "\n")
		return b.String()
	}
	maxCells := width - 60
	if maxCells < 10 {
		maxCells = 10
	}
	for _, r := range rows {
		bar := p.bar.Render(strings.Repeat("█", barCells(r.Width, maxCells)))
		fmt.Fprintf(&b, "  %3d. %-36s %10s %s\n", r.Rank, truncate(r.Domain, 36), r.Display, bar)
	}
	return b.String()
}

func renderClients(p palette, rows []view.ClientRow) string {
	var b strings.Builder
	b.WriteString(p.header.Render("Top Clients") + "\n")
	if len(rows) == 0 {
		b.WriteString(p.muted.Render("  no data") + "\n")
		return b.String()
	}
	for _, r := range rows {
		line := fmt.Sprintf("  %3d. %-40s %10s", r.Rank, r.Client, r.Display)
		if r.Selected {
			line = p.sel.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func renderClientDetail(p palette, d view.ClientDetail) string {
	if !d.Selected {
		return p.header.Render("Client Query Details") + "\n" + p.muted.Render("  "+d.Placeholder) + "\n"
	}
	return renderQueries(p, d.Title, d.Rows, d.Pager)
}

func renderDomainDetail(p palette, d view.DomainDetail) string {
	var b strings.Builder
	if !d.Selected {
		b.WriteString(p.header.Render("Domain Clients") + "\n")
		b.WriteString(p.muted.Render("  "+d.Placeholder) + "\n")
		return b.String()
	}
	b.WriteString(p.header.Render(d.Title) + "\n")
	for _, r := range d.Rows {
		fmt.Fprintf(&b, "  %-40s %8d  %s (%s)\n", r.Client, r.QueryCount, r.LastQuery, r.LastAgo)
	}
	b.WriteString(renderPager(p, d.Pager))
	return b.String()
}

func renderQueries(p palette, title string, rows []view.QueryRow, pg view.Pager) string {
	var b strings.Builder
	b.WriteString(p.header.Render(title) + "\n")
	if len(rows) == 0 {
		b.WriteString(p.muted.Render("  no queries on this page") + "\n")
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s  %-18s %-8s %s\n", p.muted.Render(r.Time), truncate(r.Client, 18), r.Type, r.Domain)
	}
	b.WriteString(renderPager(p, pg))
	return b.String()
}

func renderBlocked(p palette, rows []view.BlockedRow, withCommand bool) string {
	var b strings.Builder
	b.WriteString(p.header.Render("Blocked Domains") + "\n")
	if len(rows) == 0 {
		b.WriteString(p.muted.Render("  nothing blocked") + "\n")
		return b.String()
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %3d. %s %10s\n", r.Rank, p.blocked.Render(fmt.Sprintf("%-40s", truncate(r.Domain, 40))), r.Display)
		if withCommand {
			b.WriteString("       " + p.muted.Render(r.Command) + "\n")
		}
	}
	return b.String()
}

func renderPager(p palette, pg view.Pager) string {
	prev, next := "< prev", "next >"
	if pg.PrevDisabled {
		prev = p.muted.Render(prev)
	} else {
		prev = p.accent.Render(prev)
	}
	if pg.NextDisabled {
		next = p.muted.Render(next)
	} else {
		next = p.accent.Render(next)
	}
	return fmt.Sprintf("  %s  page %d  %s\n", prev, pg.Page, next)
}

// RenderSearch draws the search pane on its own, as printed by `dnsdash search`.
func RenderSearch(s view.SearchPanel, t theme.Resolved) string {
	p := newPalette(t)
	var b strings.Builder
	b.WriteString(p.header.Render("Domain Search") + "\n")
	if s.Status != view.SearchStatusResults {
		b.WriteString("  " + p.muted.Render(s.Message) + "\n")
		return b.String()
	}
	for _, r := range s.Rows {
		status := "-"
		if r.Resolved {
			status = string(r.Status)
			switch {
			case r.Error != "":
				status += ": " + r.Error
			case len(r.Records) > 0:
				status += " " + strings.Join(r.Records, ", ")
			}
			status += fmt.Sprintf(" (%dms)", r.DurationMS)
		}
		fmt.Fprintf(&b, "  %-40s %-6s %s\n", truncate(r.Domain, 40), r.Type, status)
	}
	b.WriteString(renderPager(p, s.Pager))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
