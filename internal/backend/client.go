// Package backend is the fetch gateway for the DNS telemetry REST API.
//
// getJSON is strict and returns every failure. The typed methods on Client are
// defensive: on failure they log and return an empty slice or a zero value
// together with the error, so a caller that ignores the error still gets a safe
// value. A null or non-array body on a list endpoint is not a failure and
// yields an empty slice with a nil error. There are no retries; the next
// refresh is the recovery path.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/metrics"
	"github.com/jroosing/dnsdash/internal/qtype"
)

// apiPrefix is the path every backend endpoint lives under.
const apiPrefix = "/api/"

// Client talks to the telemetry backend.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Client. m may be nil.
func New(cfg config.BackendConfig, logger *slog.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		logger:  logger.With("component", "backend"),
		metrics: m,
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON issues GET /api/<endpoint>?<params> and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + apiPrefix + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// fetch wraps getJSON with metrics and logging.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, out any) error {
	start := time.Now()
	err := c.getJSON(ctx, endpoint, params, out)
	c.metrics.ObserveBackend(endpoint, err, time.Since(start))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("backend request cancelled", "endpoint", endpoint)
		} else {
			c.logger.Warn("backend request failed", "endpoint", endpoint, "err", err)
		}
	}
	return err
}

// getList fetches a list endpoint. Failures return an empty slice and the
// error; null and non-array bodies return an empty slice and no error.
func getList[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.fetch(ctx, endpoint, params, &raw); err != nil {
		return []T{}, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		if err != nil {
			c.logger.Debug("non-array body treated as empty", "endpoint", endpoint)
		}
		return []T{}, nil
	}
	return out, nil
}

// getScalar fetches an object endpoint, returning the zero value and the error on failure.
func getScalar[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	var out T
	if err := c.fetch(ctx, endpoint, nil, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func pageParams(page, size int) url.Values {
	if page < 1 {
		page = 1
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(size))
	return v
}

// TopDomains returns the most queried domains.
func (c *Client) TopDomains(ctx context.Context) ([]DomainCount, error) {
	return getList[DomainCount](ctx, c, EndpointTopDomains, nil)
}

// QueryTypes returns the query type distribution with normalized labels.
func (c *Client) QueryTypes(ctx context.Context) ([]QueryTypeCount, error) {
	rows, err := getList[QueryTypeCount](ctx, c, EndpointQueryTypes, nil)
	for i := range rows {
		rows[i].Type = qtype.Normalize(rows[i].Type)
	}
	return rows, err
}

// Clients returns clients ranked by query count.
func (c *Client) Clients(ctx context.Context) ([]ClientCount, error) {
	return getList[ClientCount](ctx, c, EndpointClients, nil)
}

// BlockedDomains returns the most blocked domains.
func (c *Client) BlockedDomains(ctx context.Context) ([]DomainCount, error) {
	return getList[DomainCount](ctx, c, EndpointBlockedDomains, nil)
}

// UniqueClientsCount returns the number of distinct clients, or zero on failure.
func (c *Client) UniqueClientsCount(ctx context.Context) (Count, error) {
	return getScalar[Count](ctx, c, EndpointUniqueClientsCount)
}

// UniqueDomainsCount returns the number of distinct domains, or zero on failure.
func (c *Client) UniqueDomainsCount(ctx context.Context) (Count, error) {
	return getScalar[Count](ctx, c, EndpointUniqueDomainsCount)
}

// QueriesPerMinute returns the recent query rate, or zero on failure.
func (c *Client) QueriesPerMinute(ctx context.Context) (QueriesPerMinute, error) {
	return getScalar[QueriesPerMinute](ctx, c, EndpointQueriesPerMinute)
}

// IPVersions returns query counts split by client IP version.
func (c *Client) IPVersions(ctx context.Context) ([]IPVersionCount, error) {
	return getList[IPVersionCount](ctx, c, EndpointIPVersions, nil)
}

// ClientQueries returns one page of queries made by client. The client field is
// filled in since the backend omits it.
func (c *Client) ClientQueries(ctx context.Context, client string, page int) ([]QueryRecord, error) {
	params := pageParams(page, ClientPageSize)
	params.Set("client", client)
	rows, err := getList[QueryRecord](ctx, c, EndpointClientQueries, params)
	for i := range rows {
		if rows[i].Client == "" {
			rows[i].Client = client
		}
		rows[i].Type = qtype.Normalize(rows[i].Type)
	}
	return rows, err
}

// AllQueries returns one page of the most recent queries.
func (c *Client) AllQueries(ctx context.Context, page int) ([]QueryRecord, error) {
	rows, err := getList[QueryRecord](ctx, c, EndpointAllQueries, pageParams(page, QueriesPageSize))
	for i := range rows {
		rows[i].Type = qtype.Normalize(rows[i].Type)
	}
	return rows, err
}

// SearchDomains returns one page of partial matches for term with live resolution results.
func (c *Client) SearchDomains(ctx context.Context, term string, page int) ([]DomainMatch, error) {
	params := pageParams(page, SearchPageSize)
	params.Set("domain", term)
	params.Set("partial", "true")
	rows, err := getList[DomainMatch](ctx, c, EndpointDomainQueries, params)
	for i := range rows {
		rows[i].Type = qtype.Normalize(rows[i].Type)
	}
	return rows, err
}

// DomainClients returns one page of clients that queried domain.
func (c *Client) DomainClients(ctx context.Context, domain string, page int) ([]DomainClientRecord, error) {
	params := pageParams(page, DomainPageSize)
	params.Set("domain", domain)
	return getList[DomainClientRecord](ctx, c, EndpointDomainClients, params)
}
