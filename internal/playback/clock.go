// Package playback drives which logical frame is current and writes that
// frame's positions onto the scene.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Ticker is the subset of *time.Ticker the clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Clock advances the current frame index on a repeating timer.
//
// States: Stopped (initial) -> Start -> Running -> Stop or end of log -> Stopped.
// Seek is valid in both states and never changes the state.
type Clock struct {
	mu sync.Mutex

	frameCount int
	interval   time.Duration
	current    int

	running  bool
	stopChan chan struct{}

	newTicker TickerFactory
	onAdvance func(frame int)
}

// NewClock derives the per-frame interval from the total playback duration.
// An empty log yields a zero interval and a clock that never runs.
func NewClock(frameCount int, total time.Duration) *Clock {
	c := &Clock{
		frameCount: frameCount,
		newTicker:  NewRealTicker,
	}
	if frameCount > 0 {
		c.interval = total / time.Duration(frameCount)
		if c.interval <= 0 {
			c.interval = time.Millisecond
		}
	}
	return c
}

// SetTickerFactory replaces the timer source. Must be called while stopped.
func (c *Clock) SetTickerFactory(f TickerFactory) {
	c.mu.Lock()
	c.newTicker = f
	c.mu.Unlock()
}

// OnAdvance registers a callback fired after every timer advance, outside
// the clock lock.
func (c *Clock) OnAdvance(fn func(frame int)) {
	c.mu.Lock()
	c.onAdvance = fn
	c.mu.Unlock()
}

// Interval returns the logical frame duration.
func (c *Clock) Interval() time.Duration { return c.interval }

// FrameCount returns N.
func (c *Clock) FrameCount() int { return c.frameCount }

// Start begins advancing. It is idempotent: starting a running clock does
// not create a second timer. Starting at the end of the log rewinds to 0.
// Returns false when nothing was started.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.frameCount == 0 {
		return false
	}
	if c.current >= c.frameCount {
		c.current = 0
	}

	stop := make(chan struct{})
	c.running = true
	c.stopChan = stop
	go c.run(c.newTicker(c.interval), stop)

	log.Debug().Dur("interval", c.interval).Int("frame", c.current).Msg("▶️ Playback clock started")
	return true
}

// Stop halts advancement without resetting the index.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopChan)
	c.stopChan = nil
	log.Debug().Int("frame", c.current).Msg("⏸️ Playback clock stopped")
}

// Seek sets the current index. Out-of-range frames are ignored.
func (c *Clock) Seek(frame int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame < 0 || frame >= c.frameCount {
		return false
	}
	c.current = frame
	return true
}

// Current returns the raw index, which equals N once the log has ended.
func (c *Clock) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// DisplayFrame returns the last valid frame index for display, or -1 for an
// empty log.
func (c *Clock) DisplayFrame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return min(c.current, c.frameCount-1)
}

// Running reports whether the timer is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) run(t Ticker, stop chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !c.advance(stop) {
				return
			}
		}
	}
}

// advance moves one frame forward. It returns false when this timer should
// exit, either because it was superseded or the log ended.
func (c *Clock) advance(stop chan struct{}) bool {
	c.mu.Lock()
	if !c.running || c.stopChan != stop {
		c.mu.Unlock()
		return false
	}

	c.current++
	frame := c.current
	ended := c.current >= c.frameCount
	if ended {
		c.running = false
		c.stopChan = nil
	}
	cb := c.onAdvance
	c.mu.Unlock()

	if ended {
		log.Info().Int("frames", c.frameCount).Msg("🏁 End of match log reached")
	}
	if cb != nil {
		cb(frame)
	}
	return !ended
}
