package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/dnsdash/internal/api/handlers"
	"github.com/jroosing/dnsdash/internal/api/web"
	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/session"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/stretchr/testify/require"
)

// stubGateway answers every backend call with fixed data. When gate is set,
// TopDomains blocks until it is closed so a batch stays in flight.
type stubGateway struct {
	gate chan struct{}
}

func (g *stubGateway) TopDomains(ctx context.Context) ([]backend.DomainCount, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return []backend.DomainCount{}, ctx.Err()
		}
	}
	return []backend.DomainCount{{Domain: "example.com", Count: 42}}, nil
}

func (g *stubGateway) QueryTypes(context.Context) ([]backend.QueryTypeCount, error) {
	return []backend.QueryTypeCount{{Type: "A", Count: 40}, {Type: "AAAA", Count: 2}}, nil
}

func (g *stubGateway) Clients(context.Context) ([]backend.ClientCount, error) {
	return []backend.ClientCount{{Client: "192.168.1.10", Count: 42}}, nil
}

func (g *stubGateway) BlockedDomains(context.Context) ([]backend.DomainCount, error) {
	return []backend.DomainCount{{Domain: "ads.example", Count: 7}}, nil
}

func (g *stubGateway) UniqueClientsCount(context.Context) (backend.Count, error) {
	return backend.Count{Count: 1}, nil
}

func (g *stubGateway) UniqueDomainsCount(context.Context) (backend.Count, error) {
	return backend.Count{Count: 1}, nil
}

func (g *stubGateway) QueriesPerMinute(context.Context) (backend.QueriesPerMinute, error) {
	return backend.QueriesPerMinute{QueriesPerMinute: 0.7, TotalQueries: 42, TimeWindowMinutes: 60}, nil
}

func (g *stubGateway) IPVersions(context.Context) ([]backend.IPVersionCount, error) {
	return []backend.IPVersionCount{{IPType: "IPv4", Count: 42}}, nil
}

func (g *stubGateway) ClientQueries(_ context.Context, client string, _ int) ([]backend.QueryRecord, error) {
	return []backend.QueryRecord{{Timestamp: 1700000000, Client: client, Domain: "example.com", Type: "A"}}, nil
}

func (g *stubGateway) AllQueries(context.Context, int) ([]backend.QueryRecord, error) {
	return []backend.QueryRecord{{Timestamp: 1700000000, Client: "192.168.1.10", Domain: "example.com", Type: "A"}}, nil
}

func (g *stubGateway) SearchDomains(_ context.Context, term string, _ int) ([]backend.DomainMatch, error) {
	return []backend.DomainMatch{{
		Domain:     term + ".example",
		Type:       "A",
		Resolution: &backend.ResolutionResult{Status: backend.ResolutionSuccess, Records: []string{"10.0.0.1"}, Duration: 3},
	}}, nil
}

func (g *stubGateway) DomainClients(_ context.Context, domain string, _ int) ([]backend.DomainClientRecord, error) {
	return []backend.DomainClientRecord{{Client: "192.168.1.10", QueryCount: int64(len(domain)), LastQuery: 1700000000}}, nil
}

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func idleTickers(time.Duration) refresh.Ticker { return idleTicker{} }

type testEnv struct {
	handler  *handlers.Handler
	sessions *session.Manager
	gateway  *stubGateway
	themes   *theme.MemoryStore
	router   *gin.Engine
}

func newTestEnv(t *testing.T, gw *stubGateway, opts ...session.Option) *testEnv {
	t.Helper()
	if gw == nil {
		gw = &stubGateway{}
	}
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	cfg := config.Default()
	opts = append([]session.Option{
		session.WithTickerFactory(idleTickers),
		session.WithRenderer(renderer.Fragment),
	}, opts...)
	m := session.NewManager(gw, cfg.Sessions, cfg.Dashboard, opts...)
	t.Cleanup(m.Shutdown)

	themes := theme.NewMemoryStore()
	h := handlers.New(cfg, handlers.Deps{Sessions: m, Themes: themes, Renderer: renderer}, nil)
	return &testEnv{handler: h, sessions: m, gateway: gw, themes: themes, router: setupTestRouter(h)}
}

func setupTestRouter(h *handlers.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/", h.Index)

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/theme", h.GetTheme)
	api.PUT("/theme", h.PutTheme)

	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/close", h.CloseSession)
	api.POST("/sessions/:id/refresh", h.RefreshSession)
	api.PUT("/sessions/:id/auto-refresh", h.SetAutoRefresh)
	api.PUT("/sessions/:id/tab", h.SetTab)
	api.PUT("/sessions/:id/client", h.SelectClient)
	api.PUT("/sessions/:id/domain", h.SelectDomain)
	api.POST("/sessions/:id/search", h.Search)
	api.POST("/sessions/:id/page", h.Page)
	api.PUT("/sessions/:id/theme", h.SetSessionTheme)
	api.GET("/sessions/:id/ws", h.SessionWS)

	return r
}
