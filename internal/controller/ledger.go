package controller

import (
	"time"

	"github.com/sweeney/coin-acceptor/internal/coin"
)

// Report is the aggregated view sent to the dashboard.
type Report struct {
	Counts [2]uint64 // per reported channel, in configured order
	Cents  uint64    // value of both reported channels
}

// Coins returns the number of coins across both reported channels.
func (r Report) Coins() uint64 {
	return r.Counts[0] + r.Counts[1]
}

// Balance returns the cumulative value formatted as "<major>.<minor>".
func (r Report) Balance() string {
	return coin.FormatCents(r.Cents)
}

// Ledger tracks the gating channels: the last count pair seen by the task
// and the time accumulated towards the next periodic report. It only reads
// the channels; they are owned by the composition root.
type Ledger struct {
	channels [2]*coin.Channel
	previous [2]uint64
	elapsed  time.Duration
}

// NewLedger creates a ledger over the two gating channels. The initial
// snapshot is zero, so coins counted before the first tick are reported on
// that tick.
func NewLedger(gating [2]*coin.Channel) *Ledger {
	return &Ledger{channels: gating}
}

// live reads the current count pair.
func (l *Ledger) live() [2]uint64 {
	return [2]uint64{l.channels[0].Count(), l.channels[1].Count()}
}

// report builds a Report from one consistent read per channel.
func (l *Ledger) report() Report {
	var r Report
	for i, c := range l.channels {
		rd := c.Read()
		r.Counts[i] = rd.Count
		r.Cents += rd.Total
	}
	return r
}

// Previous returns the last snapshot the task acted on.
func (l *Ledger) Previous() [2]uint64 {
	return l.previous
}

// Elapsed returns the time accumulated towards the next periodic report.
func (l *Ledger) Elapsed() time.Duration {
	return l.elapsed
}

// Channels returns the gating channels in configured order.
func (l *Ledger) Channels() [2]*coin.Channel {
	return l.channels
}
