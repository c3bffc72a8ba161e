package state

import (
	"sync"
	"time"
)

// Countdown runs a repeating tick on its own goroutine until stopped. At most
// one run is active at a time. Each run has an id; tick receives it so the
// owner can ignore ticks from a run that was stopped while the tick was
// being delivered.
type Countdown struct {
	interval time.Duration
	tick     func(run uint64)

	mu   sync.Mutex
	run  uint64
	stop chan struct{}
}

// NewCountdown returns a stopped countdown that calls tick every interval.
func NewCountdown(interval time.Duration, tick func(run uint64)) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, tick: tick}
}

// Start cancels any active run and begins a new one. It returns the new run id.
func (c *Countdown) Start() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.run++
	stop := make(chan struct{})
	c.stop = stop
	go c.loop(c.run, stop)
	return c.run
}

// Stop cancels the active run. Calling it when nothing runs is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether a run is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Current reports whether run is the active run.
func (c *Countdown) Current(run uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil && c.run == run
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) loop(run uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick(run)
		}
	}
}
