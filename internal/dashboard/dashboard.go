// Package dashboard holds the state of one viewer's dashboard and performs the
// batch and detail fetches that update it.
//
// State is guarded by a single mutex and is only mutated by commit functions;
// network I/O never holds the lock. Every detail pane has a request generation:
// a response is committed only when it is the newest request for that pane and
// the selection and page it was issued for are still current. After Close,
// in-flight fetches are cancelled and any late response is discarded.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/helpers"
	"github.com/jroosing/dnsdash/internal/metrics"
)

var (
	// ErrBusy is returned when a batch refresh or search is already in flight.
	ErrBusy = errors.New("dashboard: request already in flight")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("dashboard: closed")
	// ErrInvalidInterval is returned for refresh intervals outside config.RefreshIntervals.
	ErrInvalidInterval = errors.New("dashboard: invalid refresh interval")
	// ErrInvalidTab is returned for unknown tab names.
	ErrInvalidTab = errors.New("dashboard: invalid tab")
)

// staleBatch labels discarded batch results in metrics.
const staleBatch = "batch"

// Gateway is the subset of the backend client the dashboard reads from.
// On failure every method returns a safe empty value together with the error;
// the dashboard keeps what it already shows for anything that failed.
type Gateway interface {
	TopDomains(ctx context.Context) ([]backend.DomainCount, error)
	QueryTypes(ctx context.Context) ([]backend.QueryTypeCount, error)
	Clients(ctx context.Context) ([]backend.ClientCount, error)
	BlockedDomains(ctx context.Context) ([]backend.DomainCount, error)
	UniqueClientsCount(ctx context.Context) (backend.Count, error)
	UniqueDomainsCount(ctx context.Context) (backend.Count, error)
	QueriesPerMinute(ctx context.Context) (backend.QueriesPerMinute, error)
	IPVersions(ctx context.Context) ([]backend.IPVersionCount, error)
	ClientQueries(ctx context.Context, client string, page int) ([]backend.QueryRecord, error)
	AllQueries(ctx context.Context, page int) ([]backend.QueryRecord, error)
	SearchDomains(ctx context.Context, term string, page int) ([]backend.DomainMatch, error)
	DomainClients(ctx context.Context, domain string, page int) ([]backend.DomainClientRecord, error)
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dashboard) { d.logger = l }
}

// WithMetrics records tick outcomes and stale responses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// WithClock overrides time.Now for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithOnChange registers fn to run after every committed state change.
// fn is called without the dashboard lock held.
func WithOnChange(fn func()) Option {
	return func(d *Dashboard) { d.onChange = fn }
}

// Dashboard is one viewer's dashboard.
type Dashboard struct {
	gw       Gateway
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	onChange func()

	// life is cancelled by Close and bounds every fetch.
	life   context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	closed         bool
	batchIssued    uint64
	batchCommitted uint64
	gens           [kindCount]uint64
}

// New creates a Dashboard with the initial auto-refresh settings from cfg.
func New(gw Gateway, cfg config.DashboardConfig, opts ...Option) *Dashboard {
	interval := cfg.RefreshIntervalSeconds
	if !config.ValidRefreshInterval(interval) {
		interval = config.RefreshIntervals[0]
	}

	d := &Dashboard{
		gw:  gw,
		now: time.Now,
		state: State{
			Summary:         emptySummary(),
			ClientQueries:   []backend.QueryRecord{},
			DomainClients:   []backend.DomainClientRecord{},
			SearchResults:   []backend.DomainMatch{},
			RecentQueries:   []backend.QueryRecord{},
			ClientPage:      1,
			DomainPage:      1,
			SearchPage:      1,
			QueriesPage:     1,
			AutoRefresh:     cfg.AutoRefresh,
			RefreshInterval: interval,
			ActiveTab:       TabOverview,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dashboard")
	d.life, d.cancel = context.WithCancel(context.Background())
	return d
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Closed reports whether Close has been called.
func (d *Dashboard) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close tears the dashboard down. In-flight fetches are cancelled and their
// results discarded. Close is idempotent.
func (d *Dashboard) Close() {
	d.mu.Lock()
	already := d.closed
	d.closed = true
	d.mu.Unlock()
	if !already {
		d.cancel()
	}
}

func (d *Dashboard) notify() {
	if d.onChange != nil {
		d.onChange()
	}
}

// join derives a context cancelled by either ctx or Close.
func (d *Dashboard) join(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Refresh runs one full batch: every summary request is launched before any
// is awaited and the results are committed together. A field whose request
// failed keeps its previous value, and LastUpdated only moves when at least
// one request succeeded. A batch whose context was cancelled commits nothing.
// It returns ErrBusy without any I/O when a batch is already loading.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.state.Loading {
		d.mu.Unlock()
		return ErrBusy
	}
	d.state.Loading = true
	d.batchIssued++
	gen := d.batchIssued
	d.mu.Unlock()
	d.notify()

	ctx, cancel := d.join(ctx)
	defer cancel()

	updates := d.fetchSummary(ctx)
	return d.commitSummary(ctx, gen, updates)
}

// summaryUpdate applies one successful batch response to a Summary.
type summaryUpdate func(*Summary)

// fetchSummary runs every batch request concurrently and returns one update
// per request that succeeded.
func (d *Dashboard) fetchSummary(ctx context.Context) []summaryUpdate {
	var updates []summaryUpdate
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	run := func(f func(context.Context) (summaryUpdate, error)) {
		g.Go(func() error {
			update, err := f(gctx)
			if err != nil {
				return nil
			}
			mu.Lock()
			updates = append(updates, update)
			mu.Unlock()
			return nil
		})
	}

	run(func(ctx context.Context) (summaryUpdate, error) {
		rows, err := d.gw.TopDomains(ctx)
		return func(s *Summary) { s.TopDomains = orEmpty(rows) }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		rows, err := d.gw.QueryTypes(ctx)
		return func(s *Summary) { s.QueryTypes = orEmpty(rows) }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		rows, err := d.gw.Clients(ctx)
		return func(s *Summary) { s.Clients = orEmpty(rows) }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		rows, err := d.gw.BlockedDomains(ctx)
		return func(s *Summary) { s.BlockedDomains = orEmpty(rows) }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		c, err := d.gw.UniqueClientsCount(ctx)
		return func(s *Summary) { s.UniqueClients = c.Count }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		c, err := d.gw.UniqueDomainsCount(ctx)
		return func(s *Summary) { s.UniqueDomains = c.Count }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		qpm, err := d.gw.QueriesPerMinute(ctx)
		return func(s *Summary) { s.QueriesPerMinute = qpm }, err
	})
	run(func(ctx context.Context) (summaryUpdate, error) {
		rows, err := d.gw.IPVersions(ctx)
		return func(s *Summary) { s.IPVersions = orEmpty(rows) }, err
	})
	_ = g.Wait()
	return updates
}

func orEmpty[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func (d *Dashboard) commitSummary(ctx context.Context, gen uint64, updates []summaryUpdate) error {
	d.mu.Lock()
	d.state.Loading = false
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if ctx.Err() != nil || gen < d.batchCommitted {
		d.mu.Unlock()
		d.metrics.StaleResponse(staleBatch)
		d.logger.Debug("batch dropped", "generation", gen, "cancelled", ctx.Err() != nil)
		d.notify()
		return nil
	}
	if len(updates) == 0 {
		d.mu.Unlock()
		d.logger.Warn("batch failed, keeping previous summary", "generation", gen)
		d.notify()
		return nil
	}
	for _, update := range updates {
		update(&d.state.Summary)
	}
	d.batchCommitted = gen
	d.state.LastUpdated = d.now()
	d.mu.Unlock()

	d.logger.Debug("batch committed", "generation", gen, "responses", len(updates))
	d.notify()
	return nil
}

// Tick is one auto-refresh tick. The full batch runs only when none is loading
// (a skipped tick is counted, not queued). Independently it refetches the
// selected client and domain details and, when no client is selected, the
// recent queries page. Tick returns when every fetch it started has finished.
func (d *Dashboard) Tick(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	loading := d.state.Loading
	d.mu.Unlock()

	var wg sync.WaitGroup
	if loading {
		d.metrics.RefreshTick(metrics.TickSkipped)
	} else {
		d.metrics.RefreshTick(metrics.TickRun)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrBusy) {
				d.logger.Warn("tick refresh failed", "err", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.RefreshDetails(ctx)
	}()
	wg.Wait()
}

// RefreshDetails refetches the selected client and domain details at their
// current pages, plus recent queries when no client is selected.
func (d *Dashboard) RefreshDetails(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	var reqs []request
	if d.state.SelectedClient != "" {
		reqs = append(reqs, d.issueLocked(KindClient))
	} else {
		reqs = append(reqs, d.issueLocked(KindQueries))
	}
	if d.state.SelectedDomain != "" {
		reqs = append(reqs, d.issueLocked(KindDomain))
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req request) {
			defer wg.Done()
			d.fetchDetail(ctx, req)
		}(req)
	}
	wg.Wait()
}

// SetTab switches the active tab.
func (d *Dashboard) SetTab(tab Tab) error {
	if _, ok := ParseTab(string(tab)); !ok {
		return ErrInvalidTab
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.state.ActiveTab = tab
	d.mu.Unlock()
	d.notify()
	return nil
}

// SetAutoRefresh records the auto-refresh settings. Scheduling is done by the
// refresh coordinator owned by the caller.
func (d *Dashboard) SetAutoRefresh(enabled bool, intervalSeconds int) error {
	if !config.ValidRefreshInterval(intervalSeconds) {
		return ErrInvalidInterval
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.state.AutoRefresh = enabled
	d.state.RefreshInterval = intervalSeconds
	d.mu.Unlock()
	d.notify()
	return nil
}

// request identifies one detail fetch.
type request struct {
	kind Kind
	gen  uint64
	key  string
	page int
}

// issueLocked allocates the next generation for kind at the current selection and page.
func (d *Dashboard) issueLocked(kind Kind) request {
	d.gens[kind]++
	return request{
		kind: kind,
		gen:  d.gens[kind],
		key:  d.state.selection(kind),
		page: d.state.Page(kind),
	}
}

// currentLocked reports whether req may still be committed.
func (d *Dashboard) currentLocked(req request) bool {
	return !d.closed &&
		d.gens[req.kind] == req.gen &&
		d.state.selection(req.kind) == req.key &&
		d.state.Page(req.kind) == req.page
}

// fetchDetail performs req and commits the rows if req is still current. A
// failed fetch leaves the rows already shown, except that a failed search
// ends in an empty result list. A cancelled fetch commits nothing beyond
// clearing Searching.
func (d *Dashboard) fetchDetail(ctx context.Context, req request) {
	ctx, cancel := d.join(ctx)
	defer cancel()

	var (
		apply func(*State)
		err   error
	)
	switch req.kind {
	case KindClient:
		var rows []backend.QueryRecord
		rows, err = d.gw.ClientQueries(ctx, req.key, req.page)
		apply = func(s *State) { s.ClientQueries = orEmpty(rows) }
	case KindDomain:
		var rows []backend.DomainClientRecord
		rows, err = d.gw.DomainClients(ctx, req.key, req.page)
		apply = func(s *State) { s.DomainClients = orEmpty(rows) }
	case KindSearch:
		var rows []backend.DomainMatch
		rows, err = d.gw.SearchDomains(ctx, req.key, req.page)
		if err != nil {
			rows = nil
		}
		apply = func(s *State) {
			s.SearchResults = orEmpty(rows)
			s.Searching = false
		}
	default:
		var rows []backend.QueryRecord
		rows, err = d.gw.AllQueries(ctx, req.page)
		apply = func(s *State) { s.RecentQueries = orEmpty(rows) }
	}

	d.mu.Lock()
	if !d.currentLocked(req) {
		closed := d.closed
		d.mu.Unlock()
		if !closed {
			d.metrics.StaleResponse(req.kind.String())
			d.logger.Debug("stale response dropped", "kind", req.kind.String(), "key", req.key, "page", req.page)
		}
		return
	}
	switch {
	case ctx.Err() != nil:
		if req.kind != KindSearch {
			d.mu.Unlock()
			return
		}
		d.state.Searching = false
	case err != nil && req.kind != KindSearch:
		d.mu.Unlock()
		return
	default:
		apply(&d.state)
	}
	d.mu.Unlock()
	d.notify()
}

// SelectClient shows the queries of client starting at page 1. An empty
// client clears the selection without a fetch.
func (d *Dashboard) SelectClient(ctx context.Context, client string) error {
	return d.selectKey(ctx, KindClient, strings.TrimSpace(client))
}

// SelectDomain shows the clients that queried domain starting at page 1. An
// empty domain clears the selection without a fetch.
func (d *Dashboard) SelectDomain(ctx context.Context, domain string) error {
	return d.selectKey(ctx, KindDomain, strings.TrimSpace(domain))
}

// Search looks up domains matching term starting at page 1. An empty or
// whitespace term clears the results and issues no request.
func (d *Dashboard) Search(ctx context.Context, term string) error {
	return d.selectKey(ctx, KindSearch, strings.TrimSpace(term))
}

func (d *Dashboard) selectKey(ctx context.Context, kind Kind, key string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	switch kind {
	case KindClient:
		d.state.SelectedClient = key
		d.state.ClientQueries = []backend.QueryRecord{}
	case KindDomain:
		d.state.SelectedDomain = key
		d.state.DomainClients = []backend.DomainClientRecord{}
	case KindSearch:
		d.state.SearchTerm = key
		d.state.SearchResults = []backend.DomainMatch{}
		d.state.Searching = key != ""
	}
	d.state.setPage(kind, 1)

	if key == "" {
		// Invalidate anything in flight for the old selection.
		d.gens[kind]++
		d.mu.Unlock()
		d.notify()
		return nil
	}
	req := d.issueLocked(kind)
	d.mu.Unlock()
	d.notify()

	d.fetchDetail(ctx, req)
	return nil
}

// ClientPage moves the client detail pager by delta and refetches.
func (d *Dashboard) ClientPage(ctx context.Context, delta int) error {
	return d.Page(ctx, KindClient, delta)
}

// DomainPage moves the domain detail pager by delta and refetches.
func (d *Dashboard) DomainPage(ctx context.Context, delta int) error {
	return d.Page(ctx, KindDomain, delta)
}

// SearchPage moves the search pager by delta and refetches. It returns
// ErrBusy while a search is in flight.
func (d *Dashboard) SearchPage(ctx context.Context, delta int) error {
	return d.Page(ctx, KindSearch, delta)
}

// QueriesPage moves the recent queries pager by delta and refetches.
func (d *Dashboard) QueriesPage(ctx context.Context, delta int) error {
	return d.Page(ctx, KindQueries, delta)
}

// Page moves the pager of kind by delta. Moving below page 1 is a no-op, as is
// paging a client, domain or search pane with nothing selected. Only the
// detail for kind is refetched.
func (d *Dashboard) Page(ctx context.Context, kind Kind, delta int) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if kind != KindQueries && d.state.selection(kind) == "" {
		d.mu.Unlock()
		return nil
	}
	if kind == KindSearch && d.state.Searching {
		d.mu.Unlock()
		return ErrBusy
	}
	cur := d.state.Page(kind)
	next := helpers.StepPage(cur, delta)
	if next == cur {
		d.mu.Unlock()
		return nil
	}
	d.state.setPage(kind, next)
	if kind == KindSearch {
		d.state.Searching = true
	}
	req := d.issueLocked(kind)
	d.mu.Unlock()
	d.notify()

	d.fetchDetail(ctx, req)
	return nil
}
