package exam

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type countdownProbe struct {
	ticks   chan int
	expired chan struct{}
}

func newProbe() *countdownProbe {
	return &countdownProbe{ticks: make(chan int, 64), expired: make(chan struct{}, 4)}
}

func (p *countdownProbe) onTick(remaining int) { p.ticks <- remaining }
func (p *countdownProbe) onExpire()            { p.expired <- struct{}{} }

func (p *countdownProbe) nextTick(t *testing.T) int {
	t.Helper()
	select {
	case r := <-p.ticks:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick")
		return 0
	}
}

func (p *countdownProbe) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case r := <-p.ticks:
		t.Fatalf("unexpected tick with %d remaining", r)
	case <-p.expired:
		t.Fatal("unexpected expiry")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdownTicksThenExpiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	c := NewCountdown(clock, &mu)
	p := newProbe()

	mu.Lock()
	c.Start(10, p.onTick, p.onExpire)
	mu.Unlock()

	for want := 9; want >= 0; want-- {
		clock.Advance(time.Second)
		if got := p.nextTick(t); got != want {
			t.Fatalf("tick = %d, want %d", got, want)
		}
	}
	select {
	case <-p.expired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}

	clock.Advance(5 * time.Second)
	p.assertQuiet(t)

	mu.Lock()
	defer mu.Unlock()
	if c.Running() {
		t.Error("countdown still running after expiry")
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestCountdownStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	c := NewCountdown(clock, &mu)
	p := newProbe()

	mu.Lock()
	c.Start(10, p.onTick, p.onExpire)
	mu.Unlock()

	clock.Advance(time.Second)
	if got := p.nextTick(t); got != 9 {
		t.Fatalf("tick = %d, want 9", got)
	}

	mu.Lock()
	c.Stop()
	c.Stop() // idempotent
	mu.Unlock()

	for i := 0; i < 12; i++ {
		clock.Advance(time.Second)
	}
	p.assertQuiet(t)
}

func TestCountdownRestartSupersedes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	c := NewCountdown(clock, &mu)
	first, second := newProbe(), newProbe()

	mu.Lock()
	c.Start(10, first.onTick, first.onExpire)
	mu.Unlock()
	clock.Advance(time.Second)
	first.nextTick(t)

	mu.Lock()
	c.Start(3, second.onTick, second.onExpire)
	mu.Unlock()

	for want := 2; want >= 0; want-- {
		clock.Advance(time.Second)
		if got := second.nextTick(t); got != want {
			t.Fatalf("tick = %d, want %d", got, want)
		}
	}
	select {
	case <-second.expired:
	case <-time.After(2 * time.Second):
		t.Fatal("restarted countdown did not expire")
	}
	first.assertQuiet(t)
	second.assertQuiet(t)
}

func TestCountdownCallbackMayStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	c := NewCountdown(clock, &mu)
	ticks := make(chan int, 8)

	mu.Lock()
	c.Start(10, func(remaining int) {
		ticks <- remaining
		if remaining == 8 {
			c.Stop()
		}
	}, func() { t.Error("stopped countdown expired") })
	mu.Unlock()

	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		<-ticks
	}
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
	}
	select {
	case r := <-ticks:
		t.Fatalf("tick %d after Stop from callback", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdownNonPositiveTotal(t *testing.T) {
	var mu sync.Mutex
	c := NewCountdown(clockwork.NewFakeClock(), &mu)
	mu.Lock()
	defer mu.Unlock()
	c.Start(0, nil, nil)
	if c.Running() {
		t.Error("zero-length countdown should not run")
	}
}
