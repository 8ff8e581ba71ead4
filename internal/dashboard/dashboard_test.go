package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Gateway
// =============================================================================

type detailCall struct {
	key  string
	page int
}

type fakeGateway struct {
	mu sync.Mutex

	topDomains []backend.DomainCount
	queryTypes []backend.QueryTypeCount

	topCalls      int
	clientCalls   []detailCall
	domainCalls   []detailCall
	searchCalls   []detailCall
	queriesCalls  []int
	summaryCalls  atomic.Int32
	failing       atomic.Bool
	detailFailing atomic.Bool
	topGate       chan struct{}
	topStarted    chan struct{}
	clientGates   map[string]chan struct{}
	clientStarted chan string
	searchGate    chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		topDomains:    []backend.DomainCount{{Domain: "a.com", Count: 50}, {Domain: "b.com", Count: 10}},
		queryTypes:    []backend.QueryTypeCount{{Type: "A", Count: 80}, {Type: "UNKNOWN", Count: 20}},
		clientGates:   map[string]chan struct{}{},
		clientStarted: make(chan string, 16),
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errBackendDown = errors.New("backend down")

// down reports the failure every summary endpoint returns while failing is set.
func (f *fakeGateway) down() error {
	if f.failing.Load() {
		return errBackendDown
	}
	return nil
}

func (f *fakeGateway) TopDomains(ctx context.Context) ([]backend.DomainCount, error) {
	f.mu.Lock()
	f.topCalls++
	gate, started := f.topGate, f.topStarted
	rows := f.topDomains
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if err := wait(ctx, gate); err != nil {
		return []backend.DomainCount{}, err
	}
	if err := f.down(); err != nil {
		return []backend.DomainCount{}, err
	}
	return rows, nil
}

func (f *fakeGateway) QueryTypes(context.Context) ([]backend.QueryTypeCount, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return []backend.QueryTypeCount{}, err
	}
	return f.queryTypes, nil
}

func (f *fakeGateway) Clients(context.Context) ([]backend.ClientCount, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return []backend.ClientCount{}, err
	}
	return []backend.ClientCount{{Client: "10.0.0.1", Count: 70}, {Client: "10.0.0.2", Count: 30}}, nil
}

func (f *fakeGateway) BlockedDomains(context.Context) ([]backend.DomainCount, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return []backend.DomainCount{}, err
	}
	return []backend.DomainCount{{Domain: "ads.com", Count: 20}}, nil
}

func (f *fakeGateway) UniqueClientsCount(context.Context) (backend.Count, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return backend.Count{}, err
	}
	return backend.Count{Count: 2}, nil
}

func (f *fakeGateway) UniqueDomainsCount(context.Context) (backend.Count, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return backend.Count{}, err
	}
	return backend.Count{Count: 3}, nil
}

func (f *fakeGateway) QueriesPerMinute(context.Context) (backend.QueriesPerMinute, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return backend.QueriesPerMinute{}, err
	}
	return backend.QueriesPerMinute{QueriesPerMinute: 12.5}, nil
}

func (f *fakeGateway) IPVersions(context.Context) ([]backend.IPVersionCount, error) {
	f.summaryCalls.Add(1)
	if err := f.down(); err != nil {
		return []backend.IPVersionCount{}, err
	}
	return nil, nil
}

func (f *fakeGateway) ClientQueries(ctx context.Context, client string, page int) ([]backend.QueryRecord, error) {
	f.mu.Lock()
	f.clientCalls = append(f.clientCalls, detailCall{client, page})
	gate := f.clientGates[client]
	f.mu.Unlock()
	f.clientStarted <- client
	if err := wait(ctx, gate); err != nil {
		return []backend.QueryRecord{}, err
	}
	if f.detailFailing.Load() {
		return []backend.QueryRecord{}, errBackendDown
	}
	return []backend.QueryRecord{{Client: client, Domain: fmt.Sprintf("%s-p%d.com", client, page), Type: "A"}}, nil
}

func (f *fakeGateway) AllQueries(_ context.Context, page int) ([]backend.QueryRecord, error) {
	f.mu.Lock()
	f.queriesCalls = append(f.queriesCalls, page)
	f.mu.Unlock()
	if f.detailFailing.Load() {
		return []backend.QueryRecord{}, errBackendDown
	}
	return []backend.QueryRecord{{Client: "c", Domain: fmt.Sprintf("recent-p%d.com", page), Type: "A"}}, nil
}

func (f *fakeGateway) SearchDomains(ctx context.Context, term string, page int) ([]backend.DomainMatch, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, detailCall{term, page})
	gate := f.searchGate
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return []backend.DomainMatch{}, err
	}
	if f.detailFailing.Load() {
		return []backend.DomainMatch{}, errBackendDown
	}
	return []backend.DomainMatch{{Domain: term + ".com", Type: "A"}}, nil
}

func (f *fakeGateway) DomainClients(_ context.Context, domain string, page int) ([]backend.DomainClientRecord, error) {
	f.mu.Lock()
	f.domainCalls = append(f.domainCalls, detailCall{domain, page})
	f.mu.Unlock()
	if f.detailFailing.Load() {
		return []backend.DomainClientRecord{}, errBackendDown
	}
	return []backend.DomainClientRecord{{Client: "10.0.0.9", QueryCount: int64(page)}}, nil
}

func (f *fakeGateway) snapshotCalls() (top int, clients, domains, searches []detailCall, queries []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topCalls,
		append([]detailCall(nil), f.clientCalls...),
		append([]detailCall(nil), f.domainCalls...),
		append([]detailCall(nil), f.searchCalls...),
		append([]int(nil), f.queriesCalls...)
}

func defaultConfig() config.DashboardConfig {
	return config.DashboardConfig{AutoRefresh: true, RefreshIntervalSeconds: 5}
}

// drainStarted empties the client started channel so unrelated tests do not block.
func drainStarted(f *fakeGateway) {
	for {
		select {
		case <-f.clientStarted:
		default:
			return
		}
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	d := dashboard.New(newFakeGateway(), config.DashboardConfig{RefreshIntervalSeconds: 7})
	s := d.Snapshot()

	assert.Equal(t, 1, s.ClientPage)
	assert.Equal(t, 1, s.DomainPage)
	assert.Equal(t, 1, s.SearchPage)
	assert.Equal(t, 1, s.QueriesPage)
	assert.Equal(t, 5, s.RefreshInterval, "invalid interval falls back to the first option")
	assert.Equal(t, dashboard.TabOverview, s.ActiveTab)
	assert.NotNil(t, s.TopDomains)
	assert.NotNil(t, s.SearchResults)
	assert.True(t, s.LastUpdated.IsZero())
}

// =============================================================================
// Batch Refresh
// =============================================================================

func TestRefresh_CommitsSummary(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	var changes atomic.Int32
	d := dashboard.New(gw, defaultConfig(),
		dashboard.WithClock(func() time.Time { return fixed }),
		dashboard.WithOnChange(func() { changes.Add(1) }),
	)

	require.NoError(t, d.Refresh(context.Background()))

	s := d.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, fixed, s.LastUpdated)
	assert.Len(t, s.TopDomains, 2)
	assert.Len(t, s.QueryTypes, 2)
	assert.Len(t, s.BlockedDomains, 1)
	assert.Equal(t, int64(2), s.UniqueClients)
	assert.Equal(t, int64(3), s.UniqueDomains)
	assert.InDelta(t, 12.5, s.QueriesPerMinute.QueriesPerMinute, 1e-9)
	assert.NotNil(t, s.IPVersions, "nil list becomes empty")
	assert.Equal(t, int32(7), gw.summaryCalls.Load())
	assert.GreaterOrEqual(t, changes.Load(), int32(2), "loading on and commit both notify")
}

func TestRefresh_BusyWhileLoading(t *testing.T) {
	gw := newFakeGateway()
	gw.topGate = make(chan struct{})
	gw.topStarted = make(chan struct{}, 1)
	d := dashboard.New(gw, defaultConfig())

	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-gw.topStarted

	assert.True(t, d.Snapshot().Loading)
	assert.ErrorIs(t, d.Refresh(context.Background()), dashboard.ErrBusy)

	close(gw.topGate)
	require.NoError(t, <-done)
	top, _, _, _, _ := gw.snapshotCalls()
	assert.Equal(t, 1, top)
	assert.False(t, d.Snapshot().Loading)
}

func TestRefresh_FailedBatchKeepsPreviousState(t *testing.T) {
	gw := newFakeGateway()
	var calls atomic.Int64
	clock := func() time.Time { return time.Unix(calls.Add(1), 0) }
	d := dashboard.New(gw, defaultConfig(), dashboard.WithClock(clock))

	require.NoError(t, d.Refresh(context.Background()))
	require.NoError(t, d.QueriesPage(context.Background(), 1))
	before := d.Snapshot()

	gw.failing.Store(true)
	gw.detailFailing.Store(true)
	require.NoError(t, d.Refresh(context.Background()))
	d.RefreshDetails(context.Background())

	after := d.Snapshot()
	assert.Equal(t, before.Summary, after.Summary)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
	assert.Equal(t, before.RecentQueries, after.RecentQueries)
	assert.False(t, after.Loading)

	gw.failing.Store(false)
	require.NoError(t, d.Refresh(context.Background()))
	assert.True(t, d.Snapshot().LastUpdated.After(before.LastUpdated), "recovery commits again")
}

func TestTick_SkipsBatchWhileLoading(t *testing.T) {
	gw := newFakeGateway()
	gw.topGate = make(chan struct{})
	gw.topStarted = make(chan struct{}, 1)
	m := metrics.New()
	d := dashboard.New(gw, defaultConfig(), dashboard.WithMetrics(m))

	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-gw.topStarted

	d.Tick(context.Background())
	d.Tick(context.Background())

	top, _, _, _, queries := gw.snapshotCalls()
	assert.Equal(t, 1, top, "no batch starts while loading")
	assert.Equal(t, []int{1, 1}, queries, "recent queries still refresh")
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.RefreshTicksTotal.WithLabelValues(metrics.TickSkipped)), 1e-9)

	close(gw.topGate)
	require.NoError(t, <-done)

	d.Tick(context.Background())
	top, _, _, _, _ = gw.snapshotCalls()
	assert.Equal(t, 2, top, "batch runs once loading is over")
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RefreshTicksTotal.WithLabelValues(metrics.TickRun)), 1e-9)
}

func TestTick_RefetchesSelectedDetails(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())

	require.NoError(t, d.SelectClient(context.Background(), "10.0.0.1"))
	require.NoError(t, d.SelectDomain(context.Background(), "a.com"))
	require.NoError(t, d.DomainPage(context.Background(), 1))
	drainStarted(gw)

	d.Tick(context.Background())

	_, clients, domains, _, queries := gw.snapshotCalls()
	assert.Equal(t, []detailCall{{"10.0.0.1", 1}, {"10.0.0.1", 1}}, clients)
	assert.Equal(t, detailCall{"a.com", 2}, domains[len(domains)-1], "domain refetched at its current page")
	assert.Empty(t, queries, "recent queries are not refetched while a client is selected")
}

// =============================================================================
// Pagination
// =============================================================================

func TestPage_PrevFromFirstPageIsNoop(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())
	require.NoError(t, d.SelectClient(context.Background(), "10.0.0.1"))

	for i := 0; i < 5; i++ {
		require.NoError(t, d.ClientPage(context.Background(), -1))
		assert.Equal(t, 1, d.Snapshot().ClientPage)
	}

	_, clients, _, _, _ := gw.snapshotCalls()
	assert.Len(t, clients, 1, "only the selection fetch happened")
}

func TestPage_NextRequestsPagesInOrder(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())
	require.NoError(t, d.SelectClient(context.Background(), "10.0.0.1"))

	const n = 6
	for i := 0; i < n; i++ {
		require.NoError(t, d.ClientPage(context.Background(), 1))
	}

	_, clients, _, _, _ := gw.snapshotCalls()
	require.Len(t, clients, n+1)
	for i := 1; i <= n; i++ {
		assert.Equal(t, i+1, clients[i].page)
	}
	s := d.Snapshot()
	assert.Equal(t, n+1, s.ClientPage)
	require.Len(t, s.ClientQueries, 1)
	assert.Equal(t, "10.0.0.1-p7.com", s.ClientQueries[0].Domain)
}

func TestPage_NoSelectionIsNoop(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())

	require.NoError(t, d.ClientPage(context.Background(), 1))
	require.NoError(t, d.DomainPage(context.Background(), 1))
	require.NoError(t, d.SearchPage(context.Background(), 1))

	_, clients, domains, searches, _ := gw.snapshotCalls()
	assert.Empty(t, clients)
	assert.Empty(t, domains)
	assert.Empty(t, searches)
	assert.Equal(t, 1, d.Snapshot().ClientPage)
}

func TestQueriesPage(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())

	require.NoError(t, d.QueriesPage(context.Background(), 1))
	require.NoError(t, d.QueriesPage(context.Background(), 1))
	require.NoError(t, d.QueriesPage(context.Background(), -1))

	_, _, _, _, queries := gw.snapshotCalls()
	assert.Equal(t, []int{2, 3, 2}, queries)
	s := d.Snapshot()
	assert.Equal(t, 2, s.QueriesPage)
	assert.Equal(t, "recent-p2.com", s.RecentQueries[0].Domain)
}

func TestSelectClient_ResetsPage(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())
	require.NoError(t, d.SelectClient(context.Background(), "a"))
	require.NoError(t, d.ClientPage(context.Background(), 1))
	require.NoError(t, d.SelectClient(context.Background(), "b"))

	s := d.Snapshot()
	assert.Equal(t, "b", s.SelectedClient)
	assert.Equal(t, 1, s.ClientPage)

	require.NoError(t, d.SelectClient(context.Background(), "  "))
	s = d.Snapshot()
	assert.Empty(t, s.SelectedClient)
	assert.Empty(t, s.ClientQueries)
}

// =============================================================================
// Ordering
// =============================================================================

func TestSelectClient_StaleResponseDiscarded(t *testing.T) {
	gw := newFakeGateway()
	oldGate := make(chan struct{})
	gw.clientGates["old"] = oldGate
	m := metrics.New()
	d := dashboard.New(gw, defaultConfig(), dashboard.WithMetrics(m))

	oldDone := make(chan error, 1)
	go func() { oldDone <- d.SelectClient(context.Background(), "old") }()
	require.Equal(t, "old", <-gw.clientStarted)

	require.NoError(t, d.SelectClient(context.Background(), "new"))
	<-gw.clientStarted
	require.NoError(t, d.ClientPage(context.Background(), 1))
	<-gw.clientStarted

	close(oldGate)
	require.NoError(t, <-oldDone)

	_, clients, _, _, _ := gw.snapshotCalls()
	assert.Equal(t, []detailCall{{"old", 1}, {"new", 1}, {"new", 2}}, clients)

	s := d.Snapshot()
	assert.Equal(t, "new", s.SelectedClient)
	assert.Equal(t, 2, s.ClientPage)
	require.Len(t, s.ClientQueries, 1)
	assert.Equal(t, "new-p2.com", s.ClientQueries[0].Domain)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.StaleResponsesTotal.WithLabelValues("client")), 1e-9)
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_EmptyTermIssuesNoRequest(t *testing.T) {
	for _, term := range []string{"", "   ", "\t\n"} {
		gw := newFakeGateway()
		d := dashboard.New(gw, defaultConfig())

		require.NoError(t, d.Search(context.Background(), term))

		_, _, _, searches, _ := gw.snapshotCalls()
		assert.Empty(t, searches)
		s := d.Snapshot()
		assert.Empty(t, s.SearchResults)
		assert.NotNil(t, s.SearchResults)
		assert.False(t, s.Searching)
	}
}

func TestSearch_Results(t *testing.T) {
	gw := newFakeGateway()
	d := dashboard.New(gw, defaultConfig())

	require.NoError(t, d.Search(context.Background(), " example "))
	s := d.Snapshot()
	assert.Equal(t, "example", s.SearchTerm)
	assert.False(t, s.Searching)
	require.Len(t, s.SearchResults, 1)
	assert.Equal(t, "example.com", s.SearchResults[0].Domain)

	require.NoError(t, d.SearchPage(context.Background(), 1))
	_, _, _, searches, _ := gw.snapshotCalls()
	assert.Equal(t, []detailCall{{"example", 1}, {"example", 2}}, searches)
}

func TestSearchPage_BusyWhileSearching(t *testing.T) {
	gw := newFakeGateway()
	gw.searchGate = make(chan struct{})
	d := dashboard.New(gw, defaultConfig())

	done := make(chan error, 1)
	go func() { done <- d.Search(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return d.Snapshot().Searching }, time.Second, time.Millisecond)

	assert.ErrorIs(t, d.SearchPage(context.Background(), 1), dashboard.ErrBusy)
	assert.NoError(t, d.Refresh(context.Background()), "search never blocks a batch")

	close(gw.searchGate)
	require.NoError(t, <-done)
	assert.False(t, d.Snapshot().Searching)
	assert.Equal(t, 1, d.Snapshot().SearchPage)
}

// =============================================================================
// Settings And Teardown
// =============================================================================

func TestSetAutoRefresh(t *testing.T) {
	d := dashboard.New(newFakeGateway(), defaultConfig())

	require.NoError(t, d.SetAutoRefresh(false, 60))
	s := d.Snapshot()
	assert.False(t, s.AutoRefresh)
	assert.Equal(t, 60, s.RefreshInterval)

	assert.ErrorIs(t, d.SetAutoRefresh(true, 0), dashboard.ErrInvalidInterval)
	assert.ErrorIs(t, d.SetAutoRefresh(true, 42), dashboard.ErrInvalidInterval)
}

func TestSetTab(t *testing.T) {
	d := dashboard.New(newFakeGateway(), defaultConfig())

	require.NoError(t, d.SetTab(dashboard.TabBlocked))
	assert.Equal(t, dashboard.TabBlocked, d.Snapshot().ActiveTab)
	assert.ErrorIs(t, d.SetTab("settings"), dashboard.ErrInvalidTab)
}

func TestClose_DiscardsInFlightBatch(t *testing.T) {
	gw := newFakeGateway()
	gw.topGate = make(chan struct{})
	gw.topStarted = make(chan struct{}, 1)
	d := dashboard.New(gw, defaultConfig())

	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-gw.topStarted

	d.Close()
	d.Close()

	err := <-done
	assert.True(t, errors.Is(err, dashboard.ErrClosed))
	s := d.Snapshot()
	assert.Empty(t, s.TopDomains)
	assert.True(t, s.LastUpdated.IsZero())
	assert.True(t, d.Closed())

	assert.ErrorIs(t, d.Refresh(context.Background()), dashboard.ErrClosed)
	assert.ErrorIs(t, d.SelectClient(context.Background(), "x"), dashboard.ErrClosed)
	assert.ErrorIs(t, d.QueriesPage(context.Background(), 1), dashboard.ErrClosed)
}

func TestClose_DiscardsLateDetail(t *testing.T) {
	gw := newFakeGateway()
	gate := make(chan struct{})
	gw.clientGates["late"] = gate
	d := dashboard.New(gw, defaultConfig())

	done := make(chan error, 1)
	go func() { done <- d.SelectClient(context.Background(), "late") }()
	<-gw.clientStarted

	d.Close()
	require.NoError(t, <-done)
	assert.Empty(t, d.Snapshot().ClientQueries)
}

func TestParseHelpers(t *testing.T) {
	tab, ok := dashboard.ParseTab("queries")
	assert.True(t, ok)
	assert.Equal(t, dashboard.TabQueries, tab)
	_, ok = dashboard.ParseTab("nope")
	assert.False(t, ok)

	kind, ok := dashboard.ParseKind("search")
	assert.True(t, ok)
	assert.Equal(t, dashboard.KindSearch, kind)
	_, ok = dashboard.ParseKind("nope")
	assert.False(t, ok)
}
