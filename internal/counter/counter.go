// Package counter tweens numeric stat cards toward new values with a cubic ease-out.
package counter

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultDuration is how long a transition takes when no duration is given.
const DefaultDuration = time.Second

// Counter animates from a start value to a target over a fixed duration.
// A Counter is not safe for concurrent use; Set wraps counters with a mutex.
type Counter struct {
	duration  time.Duration
	start     int64
	target    int64
	startTime time.Time
}

// New creates a Counter resting at zero.
func New(duration time.Duration) *Counter {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Counter{duration: duration}
}

// Set retargets the counter. A changed target restarts the transition from the
// value currently displayed, so a mid-flight update never jumps.
func (c *Counter) Set(target int64, now time.Time) {
	if target == c.target {
		return
	}
	c.start = c.Value(now)
	c.target = target
	c.startTime = now
}

// Target returns the value the counter is moving toward.
func (c *Counter) Target() int64 {
	return c.target
}

// Value returns the displayed value at now.
func (c *Counter) Value(now time.Time) int64 {
	p := c.progress(now)
	if p >= 1 {
		return c.target
	}
	eased := 1 - math.Pow(1-p, 3)
	return int64(math.Round(float64(c.start) + float64(c.target-c.start)*eased))
}

// Animating reports whether the displayed value has not yet reached the target.
func (c *Counter) Animating(now time.Time) bool {
	return c.progress(now) < 1 && c.start != c.target
}

func (c *Counter) progress(now time.Time) float64 {
	if c.startTime.IsZero() {
		return 1
	}
	elapsed := now.Sub(c.startTime)
	if elapsed <= 0 {
		return 0
	}
	return math.Min(float64(elapsed)/float64(c.duration), 1)
}

// Stat card keys.
const (
	TotalQueries     = "total_queries"
	UnknownQueries   = "unknown_queries"
	UniqueClients    = "unique_clients"
	UniqueDomains    = "unique_domains"
	Clients          = "clients"
	QueriesPerMinute = "queries_per_minute" // tenths
)

// Set is a concurrency-safe group of named counters sharing one duration.
type Set struct {
	mu       sync.Mutex
	duration time.Duration
	counters map[string]*Counter
}

// NewSet creates an empty group.
func NewSet(duration time.Duration) *Set {
	return &Set{duration: duration, counters: make(map[string]*Counter)}
}

// Update retargets every counter in targets, creating counters on first use.
func (s *Set) Update(targets map[string]int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range targets {
		c, ok := s.counters[k]
		if !ok {
			c = New(s.duration)
			s.counters[k] = c
		}
		c.Set(v, now)
	}
}

// Values returns the displayed value of every counter at now.
func (s *Set) Values(now time.Time) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for k, c := range s.counters {
		out[k] = c.Value(now)
	}
	return out
}

// Animating reports whether any counter is mid-transition.
func (s *Set) Animating(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.counters {
		if c.Animating(now) {
			return true
		}
	}
	return false
}

// Keys returns the counter names in sorted order.
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.counters))
	for k := range s.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
