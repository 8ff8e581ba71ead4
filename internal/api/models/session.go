package models

import (
	"time"

	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/view"
)

// SessionResponse is the full state of one viewer session.
type SessionResponse struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	State     dashboard.State `json:"state"`
	View      view.View       `json:"view"`
	Refresh   refresh.Status  `json:"refresh"`
}

// AutoRefreshRequest changes the auto-refresh settings.
type AutoRefreshRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds" binding:"required"`
}

// TabRequest switches the visible tab.
type TabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// ClientRequest selects a client. An empty client clears the selection.
type ClientRequest struct {
	Client string `json:"client"`
}

// DomainRequest selects a domain. An empty domain clears the selection.
type DomainRequest struct {
	Domain string `json:"domain"`
}

// SearchRequest runs a domain search. An empty term clears the results.
type SearchRequest struct {
	Term string `json:"term"`
}

// PageRequest moves a pager.
type PageRequest struct {
	Pane      string `json:"pane" binding:"required,oneof=client domain search queries"`
	Direction string `json:"direction" binding:"required,oneof=prev next"`
}
