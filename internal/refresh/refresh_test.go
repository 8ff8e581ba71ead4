package refresh_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jroosing/dnsdash/internal/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Ticker
// =============================================================================

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (tf *tickerFactory) New(time.Duration) refresh.Ticker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	tf.tickers = append(tf.tickers, t)
	return t
}

func (tf *tickerFactory) active() []*fakeTicker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	var out []*fakeTicker
	for _, t := range tf.tickers {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

func (tf *tickerFactory) count() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.tickers)
}

// =============================================================================
// Scheduling
// =============================================================================

func TestConfigure_StartsOneTicker(t *testing.T) {
	tf := &tickerFactory{}
	var ticks atomic.Int32
	c := refresh.New(func(context.Context) { ticks.Add(1) }, refresh.WithTicker(tf.New))
	defer c.Stop()

	c.Configure(true, 5*time.Second)
	scheduled, interval := c.State()
	assert.True(t, scheduled)
	assert.Equal(t, 5*time.Second, interval)

	active := tf.active()
	require.Len(t, active, 1)
	active[0].ch <- time.Now()
	active[0].ch <- time.Now()

	require.Eventually(t, func() bool { return ticks.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(2), c.Status().TickCount)
}

func TestConfigure_DisabledIsIdle(t *testing.T) {
	tf := &tickerFactory{}
	c := refresh.New(func(context.Context) {}, refresh.WithTicker(tf.New))

	c.Configure(false, 5*time.Second)
	c.Configure(true, 0)
	c.Configure(true, -time.Second)

	scheduled, _ := c.State()
	assert.False(t, scheduled)
	assert.Equal(t, 0, tf.count())
	assert.Nil(t, c.Status().NextTickTime)
}

func TestToggleOffOn_ExactlyOneTicker(t *testing.T) {
	tf := &tickerFactory{}
	var ticks atomic.Int32
	c := refresh.New(func(context.Context) { ticks.Add(1) }, refresh.WithTicker(tf.New))
	defer c.Stop()

	c.Configure(true, 5*time.Second)
	c.Configure(false, 5*time.Second)
	c.Configure(true, 5*time.Second)

	assert.Equal(t, 2, tf.count())
	active := tf.active()
	require.Len(t, active, 1)

	active[0].ch <- time.Now()
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)
}

func TestReconfigure_ReplacesTicker(t *testing.T) {
	tf := &tickerFactory{}
	c := refresh.New(func(context.Context) {}, refresh.WithTicker(tf.New))
	defer c.Stop()

	for _, iv := range []time.Duration{5, 10, 30, 60, 300} {
		c.Configure(true, iv*time.Second)
	}

	assert.Len(t, tf.active(), 1)
	_, interval := c.State()
	assert.Equal(t, 300*time.Second, interval)
}

func TestStop_IdempotentAndCancelsTick(t *testing.T) {
	tf := &tickerFactory{}
	entered := make(chan struct{})
	exited := make(chan struct{})
	c := refresh.New(func(ctx context.Context) {
		close(entered)
		<-ctx.Done()
		close(exited)
	}, refresh.WithTicker(tf.New))

	c.Configure(true, time.Second)
	tf.active()[0].ch <- time.Now()
	<-entered

	c.Stop()
	c.Stop()

	select {
	case <-exited:
	default:
		t.Fatal("Stop returned before the running tick observed cancellation")
	}
	scheduled, _ := c.State()
	assert.False(t, scheduled)
	assert.Empty(t, tf.active())
}

// Real ticker: after toggling off and on, ticks arrive at one ticker's rate.
func TestToggle_RealTickerRate(t *testing.T) {
	var ticks atomic.Int32
	c := refresh.New(func(context.Context) { ticks.Add(1) })
	defer c.Stop()

	const interval = 20 * time.Millisecond
	c.Configure(true, interval)
	c.Configure(false, interval)
	c.Configure(true, interval)

	time.Sleep(10*interval + interval/2)
	c.Stop()

	n := ticks.Load()
	assert.GreaterOrEqual(t, n, int32(5))
	assert.LessOrEqual(t, n, int32(11))
}
