// Package web renders the dashboard HTML and serves its static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/gin-contrib/static"

	"github.com/jroosing/dnsdash/internal/pool"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/jroosing/dnsdash/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Page is the data behind the full dashboard document.
type Page struct {
	SessionID  string
	View       view.View
	Hydration  theme.Hydration
	StorageKey string
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
	bufs *pool.Buffers
}

var funcs = template.FuncMap{
	// css marks values built by the view package as safe style values.
	"css": func(s string) template.CSS { return template.CSS(s) },
	"activeTab": func(tabs []view.TabItem) string {
		for _, t := range tabs {
			if t.Active {
				return string(t.ID)
			}
		}
		return "overview"
	},
	"isDark": func(r theme.Resolved) bool { return r == theme.ResolvedDark },
	"dict":   dict,
}

// dict builds a map from alternating keys and values for sub-template calls.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("web").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, bufs: pool.NewBuffers()}, nil
}

// Fragment renders the dashboard body for v. It is pushed to open pages and
// swapped into #dashboard.
func (r *Renderer) Fragment(v view.View) (string, error) {
	buf := r.bufs.Get()
	defer r.bufs.Put(buf)
	if err := r.tmpl.ExecuteTemplate(buf, "dashboard", v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page writes the full HTML document. The theme class is on <html> before the
// first byte is flushed.
func (r *Renderer) Page(w io.Writer, p Page) error {
	if p.StorageKey == "" {
		p.StorageKey = theme.StorageKey
	}
	buf := r.bufs.Get()
	defer r.bufs.Put(buf)
	if err := r.tmpl.ExecuteTemplate(buf, "page", p); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Static returns the embedded CSS and JS for gin-contrib/static.
func Static() (static.ServeFileSystem, error) {
	return static.EmbedFolder(staticFS, "static")
}
