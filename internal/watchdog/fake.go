package watchdog

import "time"

// FakeWatchdog is a test double that tracks feeds against a virtual clock.
type FakeWatchdog struct {
	// Deadline is the maximum virtual time allowed between feeds.
	// Zero disables expiry tracking.
	Deadline time.Duration

	// Feeds counts calls to Feed.
	Feeds int

	// Expired is set once the virtual time since the last feed exceeds Deadline.
	Expired bool

	// OnFeed, if set, is called on every feed.
	OnFeed func()

	// Closed tracks if Close was called.
	Closed bool

	sinceFeed time.Duration
}

// NewFakeWatchdog creates a FakeWatchdog with the given deadline.
func NewFakeWatchdog(deadline time.Duration) *FakeWatchdog {
	return &FakeWatchdog{Deadline: deadline}
}

// Feed records the feed and restarts the virtual deadline.
func (f *FakeWatchdog) Feed() {
	f.Feeds++
	f.sinceFeed = 0
	if f.OnFeed != nil {
		f.OnFeed()
	}
}

// Advance moves virtual time forward.
func (f *FakeWatchdog) Advance(d time.Duration) {
	f.sinceFeed += d
	if f.Deadline > 0 && f.sinceFeed > f.Deadline {
		f.Expired = true
	}
}

// Close marks the watchdog as closed.
func (f *FakeWatchdog) Close() error {
	f.Closed = true
	return nil
}
