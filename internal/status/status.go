// Package status provides a thread-safe status tracker for the coin-acceptor
// daemon. The host loop refreshes it after every tick; HTTP handlers and
// lifecycle events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/coin-acceptor/internal/anim"
	"github.com/sweeney/coin-acceptor/internal/coin"
	"github.com/sweeney/coin-acceptor/internal/controller"
)

// NetworkInfo contains network state as reported by the host's network
// helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PeriodMs       int64
	ReportPeriodMs int64
	WatchdogMs     int64
	Watchdog       string // device path, or "soft"
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// ChannelReading is one pulse channel at snapshot time.
type ChannelReading struct {
	Denomination coin.Denomination
	Input        int
	Count        uint64
	Total        uint64 // cents
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	SessionID     string
	Identity      controller.Identity
	Channels      []ChannelReading
	Gating        [2]coin.Denomination
	Reported      [2]uint64 // gating counts last acted on by the task
	Balance       string    // live value of the gating channels
	Mode          anim.Mode
	Stats         controller.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, session id and
// config.
func NewTracker(startTime time.Time, sessionID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			SessionID: sessionID,
			StartTime: startTime,
			Config:    cfg,
			Mode:      anim.ModeIdle,
			Balance:   coin.FormatCents(0),
		},
	}
}

// Refresh copies channel readings from bank and task state from task.
// Call it from the goroutine that runs the task.
func (t *Tracker) Refresh(bank *coin.Bank, task *controller.Task) {
	channels := bank.Channels()
	readings := make([]ChannelReading, 0, len(channels))
	for _, c := range channels {
		rd := c.Read()
		readings = append(readings, ChannelReading{
			Denomination: c.Denomination(),
			Input:        bank.Input(c.Denomination()),
			Count:        rd.Count,
			Total:        rd.Total,
		})
	}

	ledger := task.Ledger()
	var gating [2]coin.Denomination
	var cents uint64
	for i, c := range ledger.Channels() {
		gating[i] = c.Denomination()
		cents += c.Total()
	}

	t.mu.Lock()
	t.snap.Channels = readings
	t.snap.Gating = gating
	t.snap.Reported = ledger.Previous()
	t.snap.Balance = coin.FormatCents(cents)
	t.snap.Mode = task.Engine().Mode()
	t.snap.Stats = task.Stats()
	t.snap.Identity = task.Identity()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelReading(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
