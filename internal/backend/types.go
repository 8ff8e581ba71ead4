package backend

// Backend endpoints, relative to the /api base path.
const (
	EndpointTopDomains         = "top-domains"
	EndpointQueryTypes         = "query-types"
	EndpointClients            = "clients"
	EndpointBlockedDomains     = "blocked-domains"
	EndpointUniqueClientsCount = "unique-clients-count"
	EndpointUniqueDomainsCount = "unique-domains-count"
	EndpointQueriesPerMinute   = "queries-per-minute"
	EndpointIPVersions         = "ipv4-vs-ipv6"
	EndpointClientQueries      = "client-queries"
	EndpointAllQueries         = "all-queries"
	EndpointDomainQueries      = "domain-queries"
	EndpointDomainClients      = "domain-clients"
)

// Page sizes requested for the paginated endpoints.
const (
	ClientPageSize  = 20
	DomainPageSize  = 20
	SearchPageSize  = 20
	QueriesPageSize = 50
)

// QueryTypeCount is one row of the query type distribution.
type QueryTypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// DomainCount is a domain with its query (or block) count.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// ClientCount is a client address with its query count.
type ClientCount struct {
	Client string `json:"client"`
	Count  int64  `json:"count"`
}

// QueryRecord is one logged query. Timestamp is Unix seconds.
type QueryRecord struct {
	Timestamp int64  `json:"timestamp"`
	Client    string `json:"client,omitempty"`
	Domain    string `json:"domain"`
	Type      string `json:"type"`
}

// DomainClientRecord is a client that queried a given domain.
type DomainClientRecord struct {
	Client     string `json:"client"`
	QueryCount int64  `json:"query_count"`
	LastQuery  int64  `json:"last_query"`
}

// ResolutionStatus is the outcome of a live lookup made by the backend during search.
type ResolutionStatus string

const (
	ResolutionSuccess ResolutionStatus = "success"
	ResolutionBlocked ResolutionStatus = "blocked"
	ResolutionError   ResolutionStatus = "error"
)

// ResolutionResult is the live lookup attached to a search row. Duration is in milliseconds.
type ResolutionResult struct {
	Status   ResolutionStatus `json:"status"`
	Records  []string         `json:"records"`
	Error    string           `json:"error,omitempty"`
	Duration int64            `json:"duration"`
}

// DomainMatch is one search row.
type DomainMatch struct {
	Domain     string            `json:"domain"`
	Type       string            `json:"type"`
	Resolution *ResolutionResult `json:"resolution,omitempty"`
}

// IPVersionCount is the query count for IPv4 or IPv6 clients.
type IPVersionCount struct {
	IPType string `json:"ip_type"`
	Count  int64  `json:"count"`
}

// QueriesPerMinute is the backend's recent query rate.
type QueriesPerMinute struct {
	QueriesPerMinute  float64 `json:"queries_per_minute"`
	TotalQueries      int64   `json:"total_queries"`
	TimeWindowMinutes int     `json:"time_window_minutes"`
}

// Count is the body of the scalar count endpoints.
type Count struct {
	Count int64 `json:"count"`
}
