// Package view turns a dashboard state snapshot into a declarative view tree.
//
// Build is pure: the same state, counter values and options always produce the
// same View. The HTML renderer in internal/api and the terminal renderer in
// internal/term both consume the tree.
package view

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/counter"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/helpers"
	"github.com/jroosing/dnsdash/internal/qtype"
	"github.com/jroosing/dnsdash/internal/theme"
)

// List lengths on the overview tab.
const (
	OverviewTopDomains = 10
	OverviewBlocked    = 12
)

// Display strings.
const (
	DefaultTitle      = "DNS Analytics Dashboard"
	Subtitle          = "DNS Query Analytics - Last 24 Hours"
	ClientPlaceholder = "Select a client to view details"
	DomainPlaceholder = "Select a domain to view its clients"
	SearchPrompt      = "Enter a domain name to search for DNS queries"
	SearchingMessage  = "Searching..."
)

const timeLayout = "2006-01-02 15:04:05"

// Options carries everything Build needs besides the state.
type Options struct {
	Title    string
	Theme    theme.Resolved
	Now      time.Time
	Location *time.Location
}

// View is the full dashboard view tree.
type View struct {
	Header             Header          `json:"header"`
	Tabs               []TabItem       `json:"tabs"`
	Stats              Stats           `json:"stats"`
	QueryTypes         []QueryTypeRow  `json:"query_types"`
	TopDomainsOverview []BarRow        `json:"top_domains_overview"`
	TopDomains         []BarRow        `json:"top_domains"`
	Clients            []ClientRow     `json:"clients"`
	ClientDetail       ClientDetail    `json:"client_detail"`
	DomainDetail       DomainDetail    `json:"domain_detail"`
	Search             SearchPanel     `json:"search"`
	BlockedOverview    []BlockedRow    `json:"blocked_overview"`
	Blocked            []BlockedRow    `json:"blocked"`
	RecentQueries      RecentQueries   `json:"recent_queries"`
	IPVersions         []IPVersionItem `json:"ip_versions"`
}

// Header is the title bar with refresh controls.
type Header struct {
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	LastUpdated string           `json:"last_updated"`
	AutoRefresh bool             `json:"auto_refresh"`
	Intervals   []IntervalOption `json:"intervals"`
	Loading     bool             `json:"loading"`
	Theme       theme.Resolved   `json:"theme"`
}

// IntervalOption is one entry of the refresh interval picker.
type IntervalOption struct {
	Seconds  int    `json:"seconds"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// TabItem is one tab of the tab bar.
type TabItem struct {
	ID     dashboard.Tab `json:"id"`
	Label  string        `json:"label"`
	Active bool          `json:"active"`
}

// StatCard is one animated number card.
type StatCard struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	Raw   int64  `json:"raw"`
	Note  string `json:"note"`
}

// Stats holds the stat cards and the derived totals behind them.
type Stats struct {
	Cards          []StatCard `json:"cards"`
	TotalQueries   int64      `json:"total_queries"`
	UnknownQueries int64      `json:"unknown_queries"`
	UnknownPercent string     `json:"unknown_percent"`
}

// QueryTypeRow is one row of the query type distribution.
type QueryTypeRow struct {
	Type    string `json:"type"`
	Count   int64  `json:"count"`
	Display string `json:"display"`
	Percent string `json:"percent"`
	Color   string `json:"color"`
}

// BarRow is a ranked domain with a relative bar width in percent.
type BarRow struct {
	Rank    int     `json:"rank"`
	Domain  string  `json:"domain"`
	Count   int64   `json:"count"`
	Display string  `json:"display"`
	Width   float64 `json:"width"`
}

// WidthCSS formats Width for a style attribute.
func (b BarRow) WidthCSS() string {
	return strconv.FormatFloat(b.Width, 'f', 2, 64) + "%"
}

// ClientRow is a ranked client.
type ClientRow struct {
	Rank     int    `json:"rank"`
	Client   string `json:"client"`
	Count    int64  `json:"count"`
	Display  string `json:"display"`
	Selected bool   `json:"selected"`
}

// Pager describes previous/next controls.
type Pager struct {
	Page         int  `json:"page"`
	PrevDisabled bool `json:"prev_disabled"`
	NextDisabled bool `json:"next_disabled"`
}

// QueryRow is one logged query.
type QueryRow struct {
	Time   string `json:"time"`
	Client string `json:"client"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
}

// ClientDetail is the per-client query pane.
type ClientDetail struct {
	Selected    bool       `json:"selected"`
	Placeholder string     `json:"placeholder,omitempty"`
	Title       string     `json:"title,omitempty"`
	Rows        []QueryRow `json:"rows"`
	Pager       Pager      `json:"pager"`
}

// DomainClientRow is one client of the domain detail pane.
type DomainClientRow struct {
	Client     string `json:"client"`
	QueryCount int64  `json:"query_count"`
	LastQuery  string `json:"last_query"`
	LastAgo    string `json:"last_ago"`
}

// DomainDetail is the per-domain client pane.
type DomainDetail struct {
	Selected    bool              `json:"selected"`
	Placeholder string            `json:"placeholder,omitempty"`
	Title       string            `json:"title,omitempty"`
	Rows        []DomainClientRow `json:"rows"`
	Pager       Pager             `json:"pager"`
}

// SearchStatus is the exclusive display state of the search pane.
type SearchStatus string

const (
	SearchStatusPrompt    SearchStatus = "prompt"
	SearchStatusSearching SearchStatus = "searching"
	SearchStatusNoResults SearchStatus = "no_results"
	SearchStatusResults   SearchStatus = "results"
)

// SearchRow is one search result with its live resolution.
type SearchRow struct {
	Domain     string                   `json:"domain"`
	Type       string                   `json:"type"`
	Status     backend.ResolutionStatus `json:"status,omitempty"`
	Records    []string                 `json:"records,omitempty"`
	Error      string                   `json:"error,omitempty"`
	DurationMS int64                    `json:"duration_ms"`
	Resolved   bool                     `json:"resolved"`
}

// SearchPanel is the search pane.
type SearchPanel struct {
	Term    string       `json:"term"`
	Status  SearchStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Rows    []SearchRow  `json:"rows"`
	Pager   Pager        `json:"pager"`
}

// BlockedRow is a blocked domain with the router command that would unblock it.
type BlockedRow struct {
	Rank    int    `json:"rank"`
	Domain  string `json:"domain"`
	Count   int64  `json:"count"`
	Display string `json:"display"`
	Command string `json:"command"`
}

// RecentQueries is the all-queries pane.
type RecentQueries struct {
	Rows  []QueryRow `json:"rows"`
	Pager Pager      `json:"pager"`
}

// IPVersionItem is the share of one IP version.
type IPVersionItem struct {
	IPType  string `json:"ip_type"`
	Count   int64  `json:"count"`
	Percent string `json:"percent"`
}

var tabLabels = map[dashboard.Tab]string{
	dashboard.TabOverview: "Overview",
	dashboard.TabDomains:  "Domains",
	dashboard.TabClients:  "Clients",
	dashboard.TabBlocked:  "Blocked",
	dashboard.TabQueries:  "All Queries",
	dashboard.TabSearch:   "Search",
}

// Build renders s into a view tree. values holds the animated counter values by
// counter key; missing keys fall back to the targets from Targets.
func Build(s dashboard.State, values map[string]int64, opts Options) View {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Theme == "" {
		opts.Theme = theme.ResolvedLight
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	return View{
		Header:             buildHeader(s, opts),
		Tabs:               buildTabs(s.ActiveTab),
		Stats:              buildStats(s, values),
		QueryTypes:         buildQueryTypes(s.QueryTypes),
		TopDomainsOverview: buildBars(head(s.TopDomains, OverviewTopDomains)),
		TopDomains:         buildBars(s.TopDomains),
		Clients:            buildClients(s.Clients, s.SelectedClient),
		ClientDetail:       buildClientDetail(s, opts),
		DomainDetail:       buildDomainDetail(s, opts),
		Search:             buildSearch(s),
		BlockedOverview:    buildBlocked(head(s.BlockedDomains, OverviewBlocked)),
		Blocked:            buildBlocked(s.BlockedDomains),
		RecentQueries: RecentQueries{
			Rows:  buildQueryRows(s.RecentQueries, opts),
			Pager: pager(s.QueriesPage, false),
		},
		IPVersions: buildIPVersions(s.IPVersions),
	}
}

// Targets derives the counter targets for the stat cards from s.
func Targets(s dashboard.State) map[string]int64 {
	total, unknown := queryTotals(s.QueryTypes)
	return map[string]int64{
		counter.TotalQueries:     total,
		counter.UnknownQueries:   unknown,
		counter.UniqueClients:    s.UniqueClients,
		counter.UniqueDomains:    s.UniqueDomains,
		counter.Clients:          int64(len(s.Clients)),
		counter.QueriesPerMinute: int64(math.Round(s.QueriesPerMinute.QueriesPerMinute * 10)),
	}
}

// queryTotals sums all query types and those without a known mnemonic.
func queryTotals(rows []backend.QueryTypeCount) (total, unknown int64) {
	for _, r := range rows {
		total += r.Count
		if qtype.IsUnknown(r.Type) {
			unknown += r.Count
		}
	}
	return total, unknown
}

// UnblockCommand is the MikroTik command that forwards domain instead of blocking it.
func UnblockCommand(domain string) string {
	return fmt.Sprintf(`/ip/dns/static add name="%s" type=FWD match-subdomain=yes`, domain)
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

func buildHeader(s dashboard.State, opts Options) Header {
	h := Header{
		Title:       opts.Title,
		Subtitle:    Subtitle,
		AutoRefresh: s.AutoRefresh,
		Loading:     s.Loading,
		Theme:       opts.Theme,
	}
	if s.LastUpdated.IsZero() {
		h.LastUpdated = "never"
	} else {
		h.LastUpdated = s.LastUpdated.In(opts.Location).Format("15:04:05")
	}
	for _, sec := range config.RefreshIntervals {
		h.Intervals = append(h.Intervals, IntervalOption{
			Seconds:  sec,
			Label:    config.IntervalLabel(sec),
			Selected: sec == s.RefreshInterval,
		})
	}
	return h
}

func buildTabs(active dashboard.Tab) []TabItem {
	tabs := make([]TabItem, 0, len(dashboard.Tabs))
	for _, t := range dashboard.Tabs {
		tabs = append(tabs, TabItem{ID: t, Label: tabLabels[t], Active: t == active})
	}
	return tabs
}

func buildStats(s dashboard.State, values map[string]int64) Stats {
	targets := Targets(s)
	val := func(key string) int64 {
		if v, ok := values[key]; ok {
			return v
		}
		return targets[key]
	}

	total, unknown := targets[counter.TotalQueries], targets[counter.UnknownQueries]
	unknownPct := helpers.FormatPercent(unknown, total)
	qpm := val(counter.QueriesPerMinute)

	return Stats{
		TotalQueries:   total,
		UnknownQueries: unknown,
		UnknownPercent: unknownPct,
		Cards: []StatCard{
			{Key: counter.TotalQueries, Label: "Total Queries", Raw: val(counter.TotalQueries), Value: FormatCount(val(counter.TotalQueries)), Note: "Last 24 hours"},
			{Key: counter.UnknownQueries, Label: "Unknown Queries", Raw: val(counter.UnknownQueries), Value: FormatCount(val(counter.UnknownQueries)), Note: unknownPct + "% of total"},
			{Key: counter.UniqueClients, Label: "Unique Clients", Raw: val(counter.UniqueClients), Value: FormatCount(val(counter.UniqueClients)), Note: "Unique IP addresses"},
			{Key: counter.UniqueDomains, Label: "Unique Domains", Raw: val(counter.UniqueDomains), Value: FormatCount(val(counter.UniqueDomains)), Note: "Different domains queried"},
			{Key: counter.QueriesPerMinute, Label: "Queries / Minute", Raw: qpm, Value: FormatTenths(qpm), Note: "Recent average"},
		},
	}
}

// FormatTenths renders a x10 fixed point value with one decimal.
func FormatTenths(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%s.%d", sign, humanize.Comma(v/10), v%10)
}

func buildQueryTypes(rows []backend.QueryTypeCount) []QueryTypeRow {
	total, _ := queryTotals(rows)
	out := make([]QueryTypeRow, 0, len(rows))
	for i, r := range rows {
		out = append(out, QueryTypeRow{
			Type:    r.Type,
			Count:   r.Count,
			Display: FormatCount(r.Count),
			Percent: helpers.FormatPercent(r.Count, total),
			Color:   fmt.Sprintf("hsl(%d, 70%%, 50%%)", i*45),
		})
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func buildBars(rows []backend.DomainCount) []BarRow {
	var maxCount int64
	for _, r := range rows {
		if r.Count > maxCount {
			maxCount = r.Count
		}
	}
	out := make([]BarRow, 0, len(rows))
	for i, r := range rows {
		out = append(out, BarRow{
			Rank:    i + 1,
			Domain:  r.Domain,
			Count:   r.Count,
			Display: FormatCount(r.Count),
			Width:   helpers.BarWidth(r.Count, maxCount),
		})
	}
	return out
}

func buildClients(rows []backend.ClientCount, selected string) []ClientRow {
	out := make([]ClientRow, 0, len(rows))
	for i, r := range rows {
		out = append(out, ClientRow{
			Rank:     i + 1,
			Client:   r.Client,
			Count:    r.Count,
			Display:  FormatCount(r.Count),
			Selected: selected != "" && r.Client == selected,
		})
	}
	return out
}

func formatUnix(ts int64, opts Options) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).In(opts.Location).Format(timeLayout)
}

func buildQueryRows(rows []backend.QueryRecord, opts Options) []QueryRow {
	out := make([]QueryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, QueryRow{
			Time:   formatUnix(r.Timestamp, opts),
			Client: r.Client,
			Domain: r.Domain,
			Type:   r.Type,
		})
	}
	return out
}

func pager(page int, busy bool) Pager {
	if page < 1 {
		page = 1
	}
	return Pager{Page: page, PrevDisabled: busy || page <= 1, NextDisabled: busy}
}

func buildClientDetail(s dashboard.State, opts Options) ClientDetail {
	if s.SelectedClient == "" {
		return ClientDetail{Placeholder: ClientPlaceholder, Rows: []QueryRow{}, Pager: pager(1, true)}
	}
	return ClientDetail{
		Selected: true,
		Title:    "Queries from " + s.SelectedClient,
		Rows:     buildQueryRows(s.ClientQueries, opts),
		Pager:    pager(s.ClientPage, false),
	}
}

func buildDomainDetail(s dashboard.State, opts Options) DomainDetail {
	if s.SelectedDomain == "" {
		return DomainDetail{Placeholder: DomainPlaceholder, Rows: []DomainClientRow{}, Pager: pager(1, true)}
	}
	rows := make([]DomainClientRow, 0, len(s.DomainClients))
	for _, r := range s.DomainClients {
		row := DomainClientRow{
			Client:     r.Client,
			QueryCount: r.QueryCount,
			LastQuery:  formatUnix(r.LastQuery, opts),
			LastAgo:    "-",
		}
		if r.LastQuery > 0 {
			row.LastAgo = humanize.RelTime(time.Unix(r.LastQuery, 0), opts.Now, "ago", "from now")
		}
		rows = append(rows, row)
	}
	return DomainDetail{
		Selected: true,
		Title:    "Clients querying " + s.SelectedDomain,
		Rows:     rows,
		Pager:    pager(s.DomainPage, false),
	}
}

func buildSearch(s dashboard.State) SearchPanel {
	p := SearchPanel{Term: s.SearchTerm, Rows: []SearchRow{}}
	switch {
	case s.SearchTerm == "":
		p.Status = SearchStatusPrompt
		p.Message = SearchPrompt
		p.Pager = pager(1, true)
		return p
	case s.Searching:
		p.Status = SearchStatusSearching
		p.Message = SearchingMessage
		p.Pager = pager(s.SearchPage, true)
		return p
	case len(s.SearchResults) == 0:
		p.Status = SearchStatusNoResults
		p.Message = fmt.Sprintf("No results found for %q", s.SearchTerm)
		p.Pager = pager(s.SearchPage, false)
		return p
	}

	p.Status = SearchStatusResults
	p.Pager = pager(s.SearchPage, false)
	for _, m := range s.SearchResults {
		row := SearchRow{Domain: m.Domain, Type: m.Type}
		if m.Resolution != nil {
			row.Resolved = true
			row.Status = m.Resolution.Status
			row.Records = m.Resolution.Records
			row.Error = m.Resolution.Error
			row.DurationMS = m.Resolution.Duration
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}

func buildBlocked(rows []backend.DomainCount) []BlockedRow {
	out := make([]BlockedRow, 0, len(rows))
	for i, r := range rows {
		out = append(out, BlockedRow{
			Rank:    i + 1,
			Domain:  r.Domain,
			Count:   r.Count,
			Display: FormatCount(r.Count),
			Command: UnblockCommand(r.Domain),
		})
	}
	return out
}

func buildIPVersions(rows []backend.IPVersionCount) []IPVersionItem {
	var total int64
	for _, r := range rows {
		total += r.Count
	}
	out := make([]IPVersionItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, IPVersionItem{
			IPType:  r.IPType,
			Count:   r.Count,
			Percent: helpers.FormatPercent(r.Count, total),
		})
	}
	return out
}
