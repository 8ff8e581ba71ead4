// Package theme stores and resolves the light/dark preference of the dashboard.
package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// StorageKey is the preference key the theme is persisted under.
const StorageKey = "dnsdash-theme"

// ErrInvalidPreference is returned when parsing an unknown preference.
var ErrInvalidPreference = errors.New("theme: invalid preference")

// Preference is what the viewer picked.
type Preference string

const (
	Light  Preference = "light"
	Dark   Preference = "dark"
	System Preference = "system"
)

// Default is used when nothing valid is stored.
const Default = Light

// Resolved is the theme actually rendered.
type Resolved string

const (
	ResolvedLight Resolved = "light"
	ResolvedDark  Resolved = "dark"
)

// Parse validates a preference string (case-insensitive).
func Parse(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case Light, Dark, System:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreference, s)
	}
}

// OrDefault returns p when valid, otherwise Default.
func OrDefault(s string) Preference {
	p, err := Parse(s)
	if err != nil {
		return Default
	}
	return p
}

// Resolve turns a preference into light or dark. systemDark is consulted only for System.
func Resolve(p Preference, systemDark bool) Resolved {
	switch p {
	case Dark:
		return ResolvedDark
	case System:
		if systemDark {
			return ResolvedDark
		}
		return ResolvedLight
	default:
		return ResolvedLight
	}
}

// Toggle returns the explicit preference that flips the resolved theme.
func Toggle(current Resolved) Preference {
	if current == ResolvedDark {
		return Light
	}
	return Dark
}

// Store loads and saves the preference.
type Store interface {
	LoadTheme(ctx context.Context) (Preference, error)
	SaveTheme(ctx context.Context, p Preference) error
}

// MemoryStore keeps the preference in memory.
type MemoryStore struct {
	mu sync.RWMutex
	p  Preference
}

// NewMemoryStore creates a store holding Default.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{p: Default}
}

// LoadTheme returns the stored preference.
func (m *MemoryStore) LoadTheme(context.Context) (Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p, nil
}

// SaveTheme replaces the stored preference.
func (m *MemoryStore) SaveTheme(_ context.Context, p Preference) error {
	if _, err := Parse(string(p)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	return nil
}

// Hint is what the server knows about the viewer's system color scheme.
type Hint int

const (
	// HintUnknown means no client hint was sent.
	HintUnknown Hint = iota
	HintLight
	HintDark
)

// ParseHint reads a Sec-CH-Prefers-Color-Scheme header value.
func ParseHint(header string) Hint {
	switch strings.Trim(strings.ToLower(strings.TrimSpace(header)), `"`) {
	case "dark":
		return HintDark
	case "light":
		return HintLight
	default:
		return HintUnknown
	}
}

// Hydration decides how the first HTML byte is themed.
type Hydration struct {
	Preference Preference
	Resolved   Resolved
	// NeedsScript is set when the preference is System and no hint was sent;
	// the page must resolve the theme in an inline head script before paint.
	NeedsScript bool
}

// Hydrate resolves p against the client hint for server-side rendering.
func Hydrate(p Preference, hint Hint) Hydration {
	h := Hydration{Preference: p, Resolved: Resolve(p, hint == HintDark)}
	if p == System && hint == HintUnknown {
		h.NeedsScript = true
	}
	return h
}
