package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jroosing/dnsdash/internal/counter"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/realtime"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/theme"
	"github.com/jroosing/dnsdash/internal/view"
)

// ErrInvalidPane is returned by Page for unknown pane names or directions.
var ErrInvalidPane = errors.New("session: invalid pane or direction")

// Renderer turns a view into the HTML fragment pushed with view events.
type Renderer func(v view.View) (string, error)

// Session is the lifetime of one open dashboard page.
type Session struct {
	id      string
	created time.Time

	dash     *dashboard.Dashboard
	coord    *refresh.Coordinator
	counters *counter.Set
	hub      *realtime.Hub

	render        Renderer
	title         string
	frameInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	lastSeen atomic.Int64
	theme    atomic.Value // theme.Resolved

	// publishMu orders view events so the last one sent reflects the newest state.
	publishMu sync.Mutex

	life       context.Context
	cancel     context.CancelFunc
	kickCh     chan struct{}
	framesDone chan struct{}
	closeOnce  sync.Once
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// LastSeen returns the last time the session was used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) touch() { s.lastSeen.Store(s.now().UnixNano()) }

// Theme returns the resolved theme the session renders with.
func (s *Session) Theme() theme.Resolved {
	if t, ok := s.theme.Load().(theme.Resolved); ok {
		return t
	}
	return theme.ResolvedLight
}

// SetTheme changes the resolved theme and republishes the view.
func (s *Session) SetTheme(t theme.Resolved) {
	s.theme.Store(t)
	s.publish()
}

// Snapshot returns the dashboard state.
func (s *Session) Snapshot() dashboard.State { return s.dash.Snapshot() }

// View builds the current view with the displayed counter values.
func (s *Session) View() view.View {
	now := s.now()
	return s.buildView(s.dash.Snapshot(), now)
}

func (s *Session) buildView(st dashboard.State, now time.Time) view.View {
	return view.Build(st, s.counters.Values(now), view.Options{
		Title: s.title,
		Theme: s.Theme(),
		Now:   now,
	})
}

// RefreshStatus reports the auto-refresh schedule.
func (s *Session) RefreshStatus() refresh.Status { return s.coord.Status() }

// Subscribe registers a push listener. The caller must Unsubscribe the id.
func (s *Session) Subscribe() (uint64, <-chan realtime.Event) { return s.hub.Register() }

// Unsubscribe removes a push listener.
func (s *Session) Unsubscribe(id uint64) { s.hub.Unregister(id) }

// Listeners returns the number of push listeners.
func (s *Session) Listeners() int { return s.hub.Size() }

// InitEvent is the first event sent to a new push listener.
func (s *Session) InitEvent() realtime.Event {
	v := s.View()
	ev := realtime.Event{Type: realtime.TypeInit, View: v}
	ev.HTML = s.renderHTML(v)
	return ev
}

// detach keeps a fetch alive after the HTTP request that started it returns,
// so a viewer that disconnects mid-request does not throw the update away.
// Close still cancels it.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Refresh runs a manual batch refresh. It returns dashboard.ErrBusy when one is in flight.
func (s *Session) Refresh(ctx context.Context) error {
	s.touch()
	return s.dash.Refresh(detach(ctx))
}

// SetAutoRefresh updates the auto-refresh settings and reschedules the ticker.
func (s *Session) SetAutoRefresh(enabled bool, intervalSeconds int) error {
	s.touch()
	if err := s.dash.SetAutoRefresh(enabled, intervalSeconds); err != nil {
		return err
	}
	s.coord.Configure(enabled, time.Duration(intervalSeconds)*time.Second)
	return nil
}

// SetTab switches the visible tab.
func (s *Session) SetTab(tab string) error {
	s.touch()
	return s.dash.SetTab(dashboard.Tab(strings.TrimSpace(tab)))
}

// SelectClient selects a client (empty clears the selection).
func (s *Session) SelectClient(ctx context.Context, client string) error {
	s.touch()
	return s.dash.SelectClient(detach(ctx), client)
}

// SelectDomain selects a domain (empty clears the selection).
func (s *Session) SelectDomain(ctx context.Context, domain string) error {
	s.touch()
	return s.dash.SelectDomain(detach(ctx), domain)
}

// Search runs a domain search.
func (s *Session) Search(ctx context.Context, term string) error {
	s.touch()
	return s.dash.Search(detach(ctx), term)
}

// Page moves the pager of the named pane ("client", "domain", "search",
// "queries") in direction "prev" or "next".
func (s *Session) Page(ctx context.Context, pane, direction string) error {
	s.touch()
	kind, ok := dashboard.ParseKind(pane)
	if !ok {
		return ErrInvalidPane
	}
	var delta int
	switch direction {
	case "prev":
		delta = -1
	case "next":
		delta = 1
	default:
		return ErrInvalidPane
	}
	return s.dash.Page(detach(ctx), kind, delta)
}

func (s *Session) renderHTML(v view.View) string {
	if s.render == nil {
		return ""
	}
	html, err := s.render(v)
	if err != nil {
		s.logger.Warn("render view failed", "err", err)
		return ""
	}
	return html
}

// publish retargets the counters from the latest state and pushes a view event.
// It runs after every committed dashboard change.
func (s *Session) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	now := s.now()
	st := s.dash.Snapshot()
	s.counters.Update(view.Targets(st), now)

	if s.hub.Size() > 0 {
		v := s.buildView(st, now)
		s.hub.Broadcast(realtime.Event{Type: realtime.TypeView, View: v, HTML: s.renderHTML(v)})
	}
	if s.counters.Animating(now) {
		s.kick()
	}
}

func (s *Session) kick() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// frameLoop pushes counter frames while any counter is animating and sleeps otherwise.
func (s *Session) frameLoop() {
	defer close(s.framesDone)
	for {
		select {
		case <-s.life.Done():
			return
		case <-s.kickCh:
		}

		ticker := time.NewTicker(s.frameInterval)
		for animating := true; animating; {
			select {
			case <-s.life.Done():
				ticker.Stop()
				return
			case <-ticker.C:
			}
			now := s.now()
			values := s.counters.Values(now)
			if s.hub.Size() > 0 {
				s.hub.Broadcast(realtime.Event{Type: realtime.TypeCounters, Counters: values})
			}
			animating = s.counters.Animating(now)
		}
		ticker.Stop()
	}
}

// initialLoad fetches the summary and the first details page, as a page load would.
func (s *Session) initialLoad() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.dash.Refresh(s.life); err != nil && !errors.Is(err, dashboard.ErrClosed) {
			s.logger.Debug("initial refresh", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.dash.RefreshDetails(s.life)
	}()
	wg.Wait()
}

// close tears the session down: the ticker stops, in-flight responses are
// discarded and push listeners are closed.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.dash.Close()
		s.coord.Stop()
		s.cancel()
		<-s.framesDone
		s.hub.Close()
	})
}
