package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/coin-acceptor/internal/coin"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Session       string        `json:"session"`
	Customer      string        `json:"customer"`
	Serial        string        `json:"serial"`
	Balance       string        `json:"balance"`
	Animation     string        `json:"animation"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Channels      []ChannelJSON `json:"channels"`
	Reports       ReportsJSON   `json:"reports"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is one pulse channel.
type ChannelJSON struct {
	Name     string `json:"name"`
	Input    int    `json:"input"`
	Count    uint64 `json:"count"`
	Total    string `json:"total"`
	Reported bool   `json:"reported"`
}

// ReportsJSON summarises dashboard reporting.
type ReportsJSON struct {
	Ticks    uint64    `json:"ticks"`
	Timed    uint64    `json:"timed"`
	Change   uint64    `json:"change"`
	Reported [2]uint64 `json:"reported_counts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PeriodMs       int64  `json:"period_ms"`
	ReportPeriodMs int64  `json:"report_period_ms"`
	WatchdogMs     int64  `json:"watchdog_ms"`
	Watchdog       string `json:"watchdog"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, 0, len(snap.Channels))
	for _, c := range snap.Channels {
		channels = append(channels, ChannelJSON{
			Name:     string(c.Denomination),
			Input:    c.Input,
			Count:    c.Count,
			Total:    coin.FormatCents(c.Total),
			Reported: c.Denomination == snap.Gating[0] || c.Denomination == snap.Gating[1],
		})
	}

	inner := StatusInner{
		Session:       snap.SessionID,
		Customer:      snap.Identity.Customer,
		Serial:        snap.Identity.Serial,
		Balance:       snap.Balance,
		Animation:     string(snap.Mode),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:      channels,
		Reports: ReportsJSON{
			Ticks:    snap.Stats.Ticks,
			Timed:    snap.Stats.TimedReports,
			Change:   snap.Stats.ChangeReports,
			Reported: snap.Reported,
		},
		Config: ConfigJSON{
			PeriodMs:       snap.Config.PeriodMs,
			ReportPeriodMs: snap.Config.ReportPeriodMs,
			WatchdogMs:     snap.Config.WatchdogMs,
			Watchdog:       snap.Config.Watchdog,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint and
// --print-state (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
