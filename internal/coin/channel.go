// Package coin counts validator pulses and converts them into money.
// This package has NO external dependencies (no GPIO, MQTT, OS, or logging):
// Channel.OnEdge is called from the GPIO edge-event goroutine and must stay
// allocation-free and non-blocking.
package coin

import "sync/atomic"

// Channel is a pulse counter bound to one validator line with a fixed value
// per pulse (in cents). It is written by exactly one edge handler and read by
// the orchestration tick.
//
// Only the pulse count is stored; the total is derived from it on read, so
// total == count * unit holds for every observation. Both are 64-bit.
type Channel struct {
	denom Denomination
	unit  uint32
	count atomic.Uint64
}

// Reading is a consistent point-in-time view of a channel.
type Reading struct {
	Count uint64
	Total uint64 // cents
}

// NewChannel creates a channel for the given denomination.
func NewChannel(d Denomination) *Channel {
	return &Channel{denom: d, unit: d.UnitValue()}
}

// OnEdge records one observed edge. Bounced or spurious edges are counted
// like real ones; there is no software debounce.
func (c *Channel) OnEdge() {
	c.count.Add(1)
}

// Read returns count and total from a single load.
func (c *Channel) Read() Reading {
	n := c.count.Load()
	return Reading{Count: n, Total: n * uint64(c.unit)}
}

// Count returns the number of edges observed so far.
func (c *Channel) Count() uint64 {
	return c.Read().Count
}

// Total returns the accumulated value in cents.
func (c *Channel) Total() uint64 {
	return c.Read().Total
}

// UnitValue returns the value of one pulse in cents.
func (c *Channel) UnitValue() uint32 {
	return c.unit
}

// Denomination returns the logical channel this counter serves.
func (c *Channel) Denomination() Denomination {
	return c.denom
}
