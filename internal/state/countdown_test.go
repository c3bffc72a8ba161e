package state

import (
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdown_TicksOncePerInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var ticks atomic.Int32
		c := NewCountdown(time.Second, func(uint64) { ticks.Add(1) })
		defer c.Stop()

		c.Start()
		time.Sleep(10*time.Second + time.Millisecond)
		synctest.Wait()
		assert.EqualValues(t, 10, ticks.Load())
	})
}

func TestCountdown_DoubleStartKeepsOneRun(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var ticks atomic.Int32
		var stale atomic.Int32
		var c *Countdown
		c = NewCountdown(time.Second, func(run uint64) {
			if !c.Current(run) {
				stale.Add(1)
				return
			}
			ticks.Add(1)
		})
		defer c.Stop()

		first := c.Start()
		second := c.Start()
		assert.NotEqual(t, first, second)
		assert.False(t, c.Current(first))

		time.Sleep(5*time.Second + time.Millisecond)
		synctest.Wait()
		assert.EqualValues(t, 5, ticks.Load())
		assert.Zero(t, stale.Load())
	})
}

func TestCountdown_StopIsIdempotent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var ticks atomic.Int32
		c := NewCountdown(time.Second, func(uint64) { ticks.Add(1) })

		c.Stop()
		c.Start()
		assert.True(t, c.Running())
		time.Sleep(2*time.Second + time.Millisecond)
		c.Stop()
		c.Stop()
		assert.False(t, c.Running())

		time.Sleep(5 * time.Second)
		synctest.Wait()
		assert.EqualValues(t, 2, ticks.Load())
	})
}
