package watchdog

import (
	"sync/atomic"
	"time"
)

// Soft is a process-local watchdog for hosts without /dev/watchdog.
// onExpire runs on its own goroutine, so it fires even when the control loop
// is wedged; it is expected to terminate the process.
type Soft struct {
	deadline time.Duration
	timer    *time.Timer
	feeds    atomic.Uint64
}

// NewSoft arms a software watchdog with the given deadline.
func NewSoft(deadline time.Duration, onExpire func()) *Soft {
	return &Soft{
		deadline: deadline,
		timer:    time.AfterFunc(deadline, onExpire),
	}
}

// Feed restarts the deadline.
func (s *Soft) Feed() {
	s.timer.Reset(s.deadline)
	s.feeds.Add(1)
}

// Feeds returns how many times the watchdog has been fed.
func (s *Soft) Feeds() uint64 {
	return s.feeds.Load()
}

// Close stops the timer.
func (s *Soft) Close() error {
	s.timer.Stop()
	return nil
}
