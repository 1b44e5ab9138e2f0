// internal/clock/clock.go
package clock

import (
	"sync"
	"time"
)

// Millis is a free-running 32-bit millisecond counter.
// It wraps after ~49.7 days; compare values with Before/After only.
type Millis uint32

// FarFuture marks an unknown or unreachable point in time.
// It is a sentinel, not a real instant: check it with == before comparing.
const FarFuture Millis = 0xFFFFFFFF

// Before reports whether t is earlier than u, correct across wraparound
// as long as the two are less than half the counter range apart.
func (t Millis) Before(u Millis) bool { return int32(t-u) < 0 }

// After reports whether t is later than u.
func (t Millis) After(u Millis) bool { return int32(t-u) > 0 }

// Add returns t advanced by d milliseconds.
func (t Millis) Add(d uint32) Millis { return t + Millis(d) }

// Sub returns the signed distance t-u in milliseconds.
func (t Millis) Sub(u Millis) int32 { return int32(t - u) }

// Clock is the time source used by the scheduler and the radio receiver.
type Clock interface {
	Now() Millis
	Sleep(d time.Duration)
}

// System is a Clock backed by the process monotonic clock.
type System struct {
	start time.Time
}

// NewSystem returns a clock whose counter starts at 1, so 0 can keep
// meaning "never".
func NewSystem() *System {
	return &System{start: time.Now().Add(-time.Millisecond)}
}

func (s *System) Now() Millis {
	return Millis(time.Since(s.start) / time.Millisecond)
}

func (s *System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually driven Clock for tests.
// Sleep advances the counter instead of blocking.
type Fake struct {
	mu  sync.Mutex
	now Millis

	// OnSleep, when set, runs after every Sleep with the new time.
	OnSleep func(now Millis)
}

func NewFake(start Millis) *Fake { return &Fake{now: start} }

func (f *Fake) Now() Millis {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(d time.Duration) {
	step := Millis(d / time.Millisecond)
	if step == 0 {
		step = 1
	}
	f.mu.Lock()
	f.now += step
	now := f.now
	hook := f.OnSleep
	f.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// Advance moves the fake clock forward by ms milliseconds.
func (f *Fake) Advance(ms uint32) {
	f.mu.Lock()
	f.now += Millis(ms)
	f.mu.Unlock()
}

// Set jumps the fake clock to t.
func (f *Fake) Set(t Millis) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
