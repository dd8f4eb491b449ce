package exam

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown decrements once per clock second and reports expiry once.
//
// The countdown shares its owner's lock: callbacks run with mu held, and
// Start, Stop and Remaining must be called with mu held. Stop invalidates the
// running generation, so once it returns no callback of that countdown can
// fire. Callbacks may call Stop or Start.
type Countdown struct {
	clock     clockwork.Clock
	mu        sync.Locker
	gen       uint64
	quit      chan struct{}
	remaining int
}

// NewCountdown returns a stopped countdown bound to the owner's lock.
func NewCountdown(clock clockwork.Clock, mu sync.Locker) *Countdown {
	return &Countdown{clock: clock, mu: mu}
}

// Start begins counting down from total seconds, superseding any running
// countdown. onTick receives the remaining seconds after each decrement and
// onExpire runs once when zero is reached. A non-positive total does nothing.
func (c *Countdown) Start(total int, onTick func(remaining int), onExpire func()) {
	c.Stop()
	if total <= 0 {
		return
	}
	c.gen++
	c.remaining = total
	c.quit = make(chan struct{})
	ticker := c.clock.NewTicker(time.Second)
	go c.run(c.gen, ticker, c.quit, onTick, onExpire)
}

// Stop halts the countdown. It is safe to call when nothing is running.
func (c *Countdown) Stop() {
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	c.gen++
}

// Running reports whether a countdown is in progress.
func (c *Countdown) Running() bool {
	return c.quit != nil
}

// Remaining returns the seconds left on the current or last countdown.
func (c *Countdown) Remaining() int {
	return c.remaining
}

func (c *Countdown) run(gen uint64, ticker clockwork.Ticker, quit <-chan struct{}, onTick func(int), onExpire func()) {
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.Chan():
			if !c.tick(gen, onTick, onExpire) {
				return
			}
		}
	}
}

// tick applies one second and reports whether the countdown keeps running.
func (c *Countdown) tick(gen uint64, onTick func(int), onExpire func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.remaining--
	if onTick != nil {
		onTick(c.remaining)
		if c.gen != gen {
			return false
		}
	}
	if c.remaining > 0 {
		return true
	}
	// finished: retire this generation before handing control to onExpire
	c.quit = nil
	c.gen++
	if onExpire != nil {
		onExpire()
	}
	return false
}
