// Package controller runs the periodic orchestration tick of the terminal.
//
// Each tick, strictly in order: feed the watchdog, advance the LED animation,
// emit the periodic report when due, and emit an immediate report (with a
// coin-in animation) when the gating channel counts changed. Nothing in the
// tick blocks beyond the sink's bounded writes.
package controller

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sweeney/coin-acceptor/internal/anim"
	"github.com/sweeney/coin-acceptor/internal/coin"
	"github.com/sweeney/coin-acceptor/internal/telemetry"
	"github.com/sweeney/coin-acceptor/internal/watchdog"
)

// Dashboard value channel ids.
const (
	ValueFirstCount  = 1 // count of the first reported channel (50 cent)
	ValueSecondCount = 2 // count of the second reported channel (1 EUR)
	ValueCoins       = 3 // sum of both counts
	ValueBalance     = 4 // formatted cumulative value
	ValueCashBalance = 5 // same as ValueBalance
	ValueOut         = 6 // paid out; always zero, dispensing is not tracked
)

// Display blocks written on the periodic report.
const (
	displayCustomer = 0
	displaySerial   = 7
)

// Identity is shown on the dashboard display on every periodic report.
type Identity struct {
	Customer string
	Serial   string
}

// Config holds the task timing.
type Config struct {
	Period       time.Duration // scheduler period; one tick advances time by this much
	ReportPeriod time.Duration // periodic report interval
}

// Stats counts reports emitted since startup.
type Stats struct {
	Ticks         uint64
	TimedReports  uint64
	ChangeReports uint64
	LastReport    Report
}

// Task is the orchestration tick. Not safe for concurrent use, except
// SetIdentity.
type Task struct {
	cfg      Config
	wd       watchdog.Watchdog
	engine   *anim.Engine
	sink     telemetry.Sink
	ledger   *Ledger
	identity atomic.Pointer[Identity]
	stats    Stats
}

// New creates a task. gating are the two channels whose count changes
// trigger the coin-in animation and an immediate report; they are also the
// channels reported to the dashboard.
func New(cfg Config, wd watchdog.Watchdog, engine *anim.Engine, sink telemetry.Sink, gating [2]*coin.Channel, id Identity) *Task {
	t := &Task{
		cfg:    cfg,
		wd:     wd,
		engine: engine,
		sink:   sink,
		ledger: NewLedger(gating),
	}
	t.identity.Store(&id)
	return t
}

// Run executes one tick. Sink errors are returned as-is; the steps already
// executed in this tick (watchdog feed, animation) are not undone.
func (t *Task) Run() error {
	t.wd.Feed()
	t.stats.Ticks++

	t.engine.Tick(t.cfg.Period)

	t.ledger.elapsed += t.cfg.Period
	if t.ledger.elapsed >= t.cfg.ReportPeriod {
		if err := t.writeIdentity(); err != nil {
			return err
		}
		if err := t.writeReport(); err != nil {
			return err
		}
		t.stats.TimedReports++
		t.ledger.elapsed = 0
	}

	live := t.ledger.live()
	if live != t.ledger.previous {
		t.ledger.previous = live
		t.engine.Request(anim.ModeCoinIn)
		if err := t.writeReport(); err != nil {
			return err
		}
		t.stats.ChangeReports++
	}
	return nil
}

func (t *Task) writeIdentity() error {
	id := t.identity.Load()
	lines := []struct {
		column, line int
		text         string
	}{
		{displayCustomer, 0, "Customer:       "},
		{displayCustomer, 1, id.Customer},
		{displaySerial, 0, "Serial:         "},
		{displaySerial, 1, id.Serial},
	}
	for _, l := range lines {
		if err := t.sink.WriteDisplay(l.column, 0, l.line, l.text); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) writeReport() error {
	r := t.ledger.report()
	balance := r.Balance()

	values := []struct {
		id    int
		value string
	}{
		{ValueFirstCount, strconv.FormatUint(r.Counts[0], 10)},
		{ValueSecondCount, strconv.FormatUint(r.Counts[1], 10)},
		{ValueCoins, strconv.FormatUint(r.Coins(), 10)},
		{ValueBalance, balance},
		{ValueCashBalance, balance},
		{ValueOut, "0"},
	}
	for _, v := range values {
		if err := t.sink.WriteValue(v.id, v.value); err != nil {
			return err
		}
	}
	t.stats.LastReport = r
	return nil
}

// SetIdentity replaces the display identity. Safe to call from any goroutine;
// the new identity is written on the next periodic report.
func (t *Task) SetIdentity(id Identity) {
	t.identity.Store(&id)
}

// Identity returns the current display identity.
func (t *Task) Identity() Identity {
	return *t.identity.Load()
}

// Ledger returns the task's coin ledger.
func (t *Task) Ledger() *Ledger {
	return t.ledger
}

// Engine returns the animation engine driven by the task.
func (t *Task) Engine() *anim.Engine {
	return t.engine
}

// Stats returns report counters.
func (t *Task) Stats() Stats {
	return t.stats
}
