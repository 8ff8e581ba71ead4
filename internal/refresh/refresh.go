// Package refresh schedules periodic dashboard refresh ticks.
//
// A Coordinator is either Idle or Scheduled. While Scheduled exactly one
// ticker and one loop goroutine exist; Configure always tears the previous
// one down before starting another.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TickFunc is run on every tick. ctx is cancelled when the schedule is torn down.
type TickFunc func(ctx context.Context)

// Ticker is the subset of *time.Ticker the coordinator uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTicker replaces the ticker source, e.g. with a channel driven by a test.
func WithTicker(f TickerFactory) Option {
	return func(c *Coordinator) { c.newTicker = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Status describes the coordinator's schedule.
type Status struct {
	Scheduled    bool          `json:"scheduled"`
	Interval     time.Duration `json:"interval"`
	TickCount    int64         `json:"tick_count"`
	LastTickTime *time.Time    `json:"last_tick_time,omitempty"`
	NextTickTime *time.Time    `json:"next_tick_time,omitempty"`
}

// Coordinator runs a TickFunc on a fixed interval.
type Coordinator struct {
	tick      TickFunc
	newTicker TickerFactory
	logger    *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	doneCh   chan struct{}

	statusMu     sync.Mutex
	tickCount    int64
	lastTickTime *time.Time
	nextTickTime *time.Time
}

// New creates an idle Coordinator.
func New(tick TickFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		tick:      tick,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "refresh")
	return c
}

// Configure cancels any existing schedule and, when enabled with a positive
// interval, starts a new one.
func (c *Coordinator) Configure(enabled bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if !enabled || interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.interval = interval
	c.doneCh = make(chan struct{})

	ticker := c.newTicker(interval)
	c.setNext(interval)
	go c.runLoop(ctx, ticker, interval, c.doneCh)
	c.logger.Debug("auto refresh scheduled", "interval", interval)
}

// Stop tears down the schedule and waits for the loop goroutine to exit. It is
// safe to call any number of times.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.doneCh
	c.cancel = nil
	c.doneCh = nil
	c.interval = 0

	c.statusMu.Lock()
	c.nextTickTime = nil
	c.statusMu.Unlock()
}

// State reports whether a schedule is active and its interval.
func (c *Coordinator) State() (scheduled bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil, c.interval
}

// Status returns the schedule along with tick bookkeeping.
func (c *Coordinator) Status() Status {
	scheduled, interval := c.State()

	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return Status{
		Scheduled:    scheduled,
		Interval:     interval,
		TickCount:    c.tickCount,
		LastTickTime: c.lastTickTime,
		NextTickTime: c.nextTickTime,
	}
}

func (c *Coordinator) runLoop(ctx context.Context, ticker Ticker, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.recordTick(interval)
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) recordTick(interval time.Duration) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	now := time.Now()
	c.lastTickTime = &now
	c.tickCount++
	next := now.Add(interval)
	c.nextTickTime = &next
}

func (c *Coordinator) setNext(interval time.Duration) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	next := time.Now().Add(interval)
	c.nextTickTime = &next
}
