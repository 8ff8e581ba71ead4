// Package session manages dashboard viewer sessions.
//
// A session bundles one Dashboard with its refresh coordinator, animated
// counters and push hub. Closing a session is the page teardown: the ticker
// stops, late responses are discarded and listeners are disconnected. Idle
// sessions are reaped after the configured timeout.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/counter"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/metrics"
	"github.com/jroosing/dnsdash/internal/realtime"
	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/jroosing/dnsdash/internal/theme"
)

var (
	// ErrNotFound is returned for unknown or closed session ids.
	ErrNotFound = errors.New("session: not found")
	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("session: too many sessions")
	// ErrShutdown is returned by Create after Shutdown.
	ErrShutdown = errors.New("session: manager shut down")
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records active sessions and passes m to every dashboard.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithRenderer sets the HTML renderer used for pushed view events.
func WithRenderer(r Renderer) Option {
	return func(m *Manager) { m.render = r }
}

// WithTickerFactory replaces the auto-refresh ticker source.
func WithTickerFactory(f refresh.TickerFactory) Option {
	return func(m *Manager) { m.newTicker = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithoutInitialLoad skips the fetch that Create normally starts.
func WithoutInitialLoad() Option {
	return func(m *Manager) { m.skipInitialLoad = true }
}

// Manager owns every live session.
type Manager struct {
	gw      dashboard.Gateway
	cfg     config.SessionsConfig
	dashCfg config.DashboardConfig

	logger          *slog.Logger
	metrics         *metrics.Metrics
	render          Renderer
	newTicker       refresh.TickerFactory
	now             func() time.Time
	skipInitialLoad bool

	mu       sync.Mutex
	sessions map[string]*Session
	shutdown bool
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager creates a Manager. Call Start to run the idle reaper.
func NewManager(gw dashboard.Gateway, cfg config.SessionsConfig, dashCfg config.DashboardConfig, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		cfg:       cfg,
		dashCfg:   dashCfg,
		newTicker: refresh.NewTimeTicker,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "session")
	if m.cfg.MaxSessions <= 0 {
		m.cfg.MaxSessions = 64
	}
	return m
}

// Start runs the idle reaper until Shutdown.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.shutdown {
		return
	}
	m.running = true

	interval := m.cfg.IdleTimeoutDuration() / 4
	if interval < time.Second {
		interval = time.Second
	}
	go m.reapLoop(interval)
}

func (m *Manager) reapLoop(interval time.Duration) {
	defer close(m.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if n := m.ReapIdle(m.now()); n > 0 {
				m.logger.Info("reaped idle sessions", "count", n)
			}
		}
	}
}

// Create opens a new session and starts loading its data in the background.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s := m.newSession()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	m.logger.DebugContext(ctx, "session created", "id", s.id, "active", n)

	go s.frameLoop()
	st := s.dash.Snapshot()
	s.coord.Configure(st.AutoRefresh, time.Duration(st.RefreshInterval)*time.Second)
	if !m.skipInitialLoad {
		go s.initialLoad()
	}
	return s, nil
}

func (m *Manager) newSession() *Session {
	s := &Session{
		id:            uuid.NewString(),
		created:       m.now(),
		counters:      counter.NewSet(m.dashCfg.CounterDurationValue()),
		hub:           realtime.NewHub(16),
		render:        m.render,
		title:         m.dashCfg.Title,
		frameInterval: m.cfg.FrameIntervalDuration(),
		now:           m.now,
		kickCh:        make(chan struct{}, 1),
		framesDone:    make(chan struct{}),
	}
	s.logger = m.logger.With("session", s.id)
	s.theme.Store(theme.Resolve(theme.Default, false))
	s.lastSeen.Store(s.created.UnixNano())
	s.life, s.cancel = context.WithCancel(context.Background())

	s.dash = dashboard.New(m.gw, m.dashCfg,
		dashboard.WithLogger(s.logger),
		dashboard.WithMetrics(m.metrics),
		dashboard.WithClock(m.now),
		dashboard.WithOnChange(s.publish),
	)
	s.coord = refresh.New(s.dash.Tick,
		refresh.WithTicker(m.newTicker),
		refresh.WithLogger(s.logger),
	)
	return s
}

// Get returns the session with id and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Close tears down the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.close()
	m.metrics.SetSessions(n)
	m.logger.Debug("session closed", "id", id, "active", n)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReapIdle closes every session unused since now minus the idle timeout and
// returns how many were closed.
func (m *Manager) ReapIdle(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTimeoutDuration())

	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) && s.Listeners() == 0 {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if m.Close(id) == nil {
			closed++
		}
	}
	return closed
}

// Shutdown stops the reaper and closes every session. Create fails afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	running := m.running
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if running {
		close(m.stopCh)
		<-m.doneCh
	}
	for _, s := range sessions {
		s.close()
	}
	m.metrics.SetSessions(0)
	m.logger.Info("sessions shut down", "closed", len(sessions))
}
