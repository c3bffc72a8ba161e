package state

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// FetchFunc reads a counter value from the server.
type FetchFunc func(ctx context.Context) (int, error)

// Counter is a badge value kept roughly in sync with a server collection.
// Sibling stores adjust it locally after confirmed mutations; Refresh re-reads
// it from the server.
type Counter struct {
	name     string
	fetch    FetchFunc
	log      zerolog.Logger
	onChange func()

	inflight atomic.Bool

	mu    sync.Mutex
	value int
	epoch uint64
}

// NewCounter builds a counter. onChange may be nil.
func NewCounter(name string, fetch FetchFunc, log zerolog.Logger, onChange func()) *Counter {
	return &Counter{
		name:     name,
		fetch:    fetch,
		log:      log.With().Str("counter", name).Logger(),
		onChange: onChange,
	}
}

// Name returns the counter's name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Refresh reads the count from the server. A refresh requested while another
// is in flight is dropped and reports false. A failed read keeps the previous
// value; the error is logged and returned.
func (c *Counter) Refresh(ctx context.Context) (bool, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		droppedRefreshesTotal.WithLabelValues(c.name).Inc()
		c.log.Debug().Msg("refresh already in flight, dropped")
		return false, nil
	}
	defer c.inflight.Store(false)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	n, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("op", "refresh").Msg("counter refresh failed")
		return true, err
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		ObserveStale(c.name)
		c.log.Debug().Msg("discarding refresh result after reset")
		return true, nil
	}
	before := c.value
	c.value = max(n, 0)
	changed := before != c.value
	c.mu.Unlock()

	if changed {
		c.changed()
	}
	return true, nil
}

// Refreshing reports whether a refresh is in flight.
func (c *Counter) Refreshing() bool {
	return c.inflight.Load()
}

// Increment adds one.
func (c *Counter) Increment() { c.Add(1) }

// Decrement subtracts one, never going below zero.
func (c *Counter) Decrement() { c.Add(-1) }

// Add adjusts the count by delta, clamped at zero.
func (c *Counter) Add(delta int) {
	c.mu.Lock()
	before := c.value
	c.value = max(c.value+delta, 0)
	changed := before != c.value
	c.mu.Unlock()
	if changed {
		c.changed()
	}
}

// Set overwrites the count.
func (c *Counter) Set(n int) {
	c.mu.Lock()
	before := c.value
	c.value = max(n, 0)
	changed := before != c.value
	c.mu.Unlock()
	if changed {
		c.changed()
	}
}

// Reset zeroes the count and discards any refresh still in flight.
func (c *Counter) Reset() {
	c.mu.Lock()
	changed := c.value != 0
	c.value = 0
	c.epoch++
	c.mu.Unlock()
	if changed {
		c.changed()
	}
}

func (c *Counter) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
