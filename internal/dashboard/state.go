package dashboard

import (
	"time"

	"github.com/jroosing/dnsdash/internal/backend"
)

// Tab is the dashboard pane a viewer has open.
type Tab string

const (
	TabOverview Tab = "overview"
	TabDomains  Tab = "domains"
	TabClients  Tab = "clients"
	TabBlocked  Tab = "blocked"
	TabQueries  Tab = "queries"
	TabSearch   Tab = "search"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabOverview, TabDomains, TabClients, TabBlocked, TabQueries, TabSearch}

// ParseTab returns the tab named s.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Kind identifies one detail pane with its own request ordering.
type Kind int

const (
	KindClient Kind = iota
	KindDomain
	KindSearch
	KindQueries
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindDomain:
		return "domain"
	case KindSearch:
		return "search"
	case KindQueries:
		return "queries"
	default:
		return "unknown"
	}
}

// ParseKind maps a pane name used by the HTTP API to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Summary is the result of one full batch refresh. It is committed as a unit.
type Summary struct {
	TopDomains       []backend.DomainCount    `json:"top_domains"`
	QueryTypes       []backend.QueryTypeCount `json:"query_types"`
	Clients          []backend.ClientCount    `json:"clients"`
	BlockedDomains   []backend.DomainCount    `json:"blocked_domains"`
	UniqueClients    int64                    `json:"unique_clients"`
	UniqueDomains    int64                    `json:"unique_domains"`
	QueriesPerMinute backend.QueriesPerMinute `json:"queries_per_minute"`
	IPVersions       []backend.IPVersionCount `json:"ip_versions"`
}

func emptySummary() Summary {
	return Summary{
		TopDomains:     []backend.DomainCount{},
		QueryTypes:     []backend.QueryTypeCount{},
		Clients:        []backend.ClientCount{},
		BlockedDomains: []backend.DomainCount{},
		IPVersions:     []backend.IPVersionCount{},
	}
}

// State is everything one viewer's dashboard shows. Slices in a State are
// replaced wholesale on commit and never modified in place, so a snapshot can
// be read without holding the dashboard lock.
type State struct {
	Summary

	ClientQueries []backend.QueryRecord        `json:"client_queries"`
	DomainClients []backend.DomainClientRecord `json:"domain_clients"`
	SearchResults []backend.DomainMatch        `json:"search_results"`
	RecentQueries []backend.QueryRecord        `json:"recent_queries"`

	SelectedClient string `json:"selected_client"`
	SelectedDomain string `json:"selected_domain"`
	SearchTerm     string `json:"search_term"`

	ClientPage  int `json:"client_page"`
	DomainPage  int `json:"domain_page"`
	SearchPage  int `json:"search_page"`
	QueriesPage int `json:"queries_page"`

	AutoRefresh     bool `json:"auto_refresh"`
	RefreshInterval int  `json:"refresh_interval_seconds"`

	Loading     bool      `json:"loading"`
	Searching   bool      `json:"searching"`
	LastUpdated time.Time `json:"last_updated"`
	ActiveTab   Tab       `json:"active_tab"`
}

// Page returns the current page of a detail pane.
func (s State) Page(k Kind) int {
	switch k {
	case KindClient:
		return s.ClientPage
	case KindDomain:
		return s.DomainPage
	case KindSearch:
		return s.SearchPage
	default:
		return s.QueriesPage
	}
}

func (s *State) setPage(k Kind, page int) {
	switch k {
	case KindClient:
		s.ClientPage = page
	case KindDomain:
		s.DomainPage = page
	case KindSearch:
		s.SearchPage = page
	default:
		s.QueriesPage = page
	}
}

// selection returns the key a detail pane is showing. Recent queries have none.
func (s State) selection(k Kind) string {
	switch k {
	case KindClient:
		return s.SelectedClient
	case KindDomain:
		return s.SelectedDomain
	case KindSearch:
		return s.SearchTerm
	default:
		return ""
	}
}
