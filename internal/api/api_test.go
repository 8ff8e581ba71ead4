// Package api_test provides behavior tests for the API package.
package api_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/dnsdash/internal/api"
	"github.com/jroosing/dnsdash/internal/api/handlers"
	"github.com/jroosing/dnsdash/internal/api/models"
	"github.com/jroosing/dnsdash/internal/api/web"
	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/metrics"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/session"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// emptyGateway returns empty results for every call.
type emptyGateway struct{}

func (emptyGateway) TopDomains(context.Context) ([]backend.DomainCount, error)     { return nil, nil }
func (emptyGateway) QueryTypes(context.Context) ([]backend.QueryTypeCount, error)  { return nil, nil }
func (emptyGateway) Clients(context.Context) ([]backend.ClientCount, error)        { return nil, nil }
func (emptyGateway) BlockedDomains(context.Context) ([]backend.DomainCount, error) { return nil, nil }
func (emptyGateway) UniqueClientsCount(context.Context) (backend.Count, error) {
	return backend.Count{}, nil
}
func (emptyGateway) UniqueDomainsCount(context.Context) (backend.Count, error) {
	return backend.Count{}, nil
}
func (emptyGateway) QueriesPerMinute(context.Context) (backend.QueriesPerMinute, error) {
	return backend.QueriesPerMinute{}, nil
}
func (emptyGateway) IPVersions(context.Context) ([]backend.IPVersionCount, error) { return nil, nil }
func (emptyGateway) ClientQueries(context.Context, string, int) ([]backend.QueryRecord, error) {
	return nil, nil
}
func (emptyGateway) AllQueries(context.Context, int) ([]backend.QueryRecord, error) { return nil, nil }
func (emptyGateway) SearchDomains(context.Context, string, int) ([]backend.DomainMatch, error) {
	return nil, nil
}
func (emptyGateway) DomainClients(context.Context, string, int) ([]backend.DomainClientRecord, error) {
	return nil, nil
}

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8090
	return cfg
}

func newServer(t *testing.T, cfg *config.Config, m *metrics.Metrics) (*api.Server, *session.Manager) {
	t.Helper()
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	sessions := session.NewManager(emptyGateway{}, cfg.Sessions, cfg.Dashboard,
		session.WithTickerFactory(func(time.Duration) refresh.Ticker { return idleTicker{} }),
		session.WithRenderer(renderer.Fragment),
		session.WithoutInitialLoad(),
	)
	t.Cleanup(sessions.Shutdown)

	srv := api.New(cfg, handlers.Deps{
		Sessions: sessions,
		Themes:   theme.NewMemoryStore(),
		Renderer: renderer,
	}, m, nil)
	return srv, sessions
}

func performRequest(r http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ============================================================================
// Server Creation Tests
// ============================================================================

func TestNew_CreatesServer(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	assert.NotNil(t, server)
}

func TestNew_PanicsOnNilConfig(t *testing.T) {
	assert.Panics(t, func() {
		api.New(nil, handlers.Deps{}, nil, nil)
	})
}

func TestServer_Addr(t *testing.T) {
	cfg := createTestConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9090

	server, _ := newServer(t, cfg, nil)

	assert.Equal(t, "0.0.0.0:9090", server.Addr())
}

func TestServer_Engine(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	assert.NotNil(t, server.Engine())
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestRoutes_Health(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRoutes_SessionLifecycle(t *testing.T) {
	server, sessions := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, sessions.Len())

	w = performRequest(server.Engine(), http.MethodPut, "/api/v1/sessions/"+created.ID+"/tab", `{"tab": "queries"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(server.Engine(), http.MethodDelete, "/api/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, sessions.Len())
}

func TestRoutes_Index(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/static/app.js")
}

func TestRoutes_StaticAssets(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		t.Run(path, func(t *testing.T) {
			w := performRequest(server.Engine(), http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Body.String())
		})
	}
}

func TestRoutes_Swagger(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/swagger/doc.json", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/sessions/{id}/auto-refresh")
}

func TestRoutes_Metrics(t *testing.T) {
	m := metrics.New()
	server, _ := newServer(t, createTestConfig(), m)

	performRequest(server.Engine(), http.MethodGet, "/api/v1/health", "")
	w := performRequest(server.Engine(), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dnsdash_http_requests_total")
}

func TestRoutes_MetricsDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.Metrics.Enabled = false
	server, _ := newServer(t, cfg, metrics.New())

	w := performRequest(server.Engine(), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ============================================================================
// NotFound Tests
// ============================================================================

func TestNotFound_APIReturnsJSON(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/zones", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not found", resp.Error)
}

func TestNotFound_Page(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/does-not-exist", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "404")
}

// ============================================================================
// API Key Tests
// ============================================================================

func TestAPIKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "test-secret-key"
	server, _ := newServer(t, cfg, nil)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "wrong-key", http.StatusUnauthorized},
		{"valid", "test-secret-key", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			server.Engine().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAPIKey_DashboardCookie(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "test-secret-key"
	server, sessions := newServer(t, cfg, nil)

	// The page itself is public and hands out the session cookie.
	page := performRequest(server.Engine(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, page.Code)
	var cookie *http.Cookie
	for _, c := range page.Result().Cookies() {
		if c.Name == handlers.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+cookie.Value+"/refresh", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Once the session is gone the cookie stops working.
	require.NoError(t, sessions.Close(cookie.Value))
	req = httptest.NewRequest(http.MethodGet, "/api/v1/theme", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// Serve / Shutdown Tests
// ============================================================================

func TestServer_ServeAndShutdown(t *testing.T) {
	server, _ := newServer(t, createTestConfig(), nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
