package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/coin-acceptor/internal/coin"
	"github.com/sweeney/coin-acceptor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"cents": coin.FormatCents,
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Coin Acceptor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.reported { font-weight: bold; }
.busy { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Coin Acceptor</h1>

<h2>Terminal</h2>
<table>
<tr><th>Customer</th><td>{{orDash .Identity.Customer}}</td></tr>
<tr><th>Serial</th><td>{{orDash .Identity.Serial}}</td></tr>
<tr><th>Balance</th><td id="balance" class="reported">{{.Balance}}</td></tr>
<tr><th>Animation</th><td class="{{if eq (printf "%s" .Mode) "IDLE"}}idle{{else}}busy{{end}}">{{.Mode}}</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><td>Input</td><td>Count</td><td>Total</td></tr>
{{range .Channels}}<tr{{if or (eq .Denomination (index $.Gating 0)) (eq .Denomination (index $.Gating 1))}} class="reported"{{end}}><th>{{.Denomination}}</th><td>{{.Input}}</td><td>{{.Count}}</td><td>{{cents .Total}}</td></tr>
{{end}}</table>

<h2>Reports</h2>
<table>
<tr><th>Ticks</th><td>{{.Stats.Ticks}}</td></tr>
<tr><th>Periodic</th><td>{{.Stats.TimedReports}}</td></tr>
<tr><th>On change</th><td>{{.Stats.ChangeReports}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Tick</th><td>{{.Config.PeriodMs}}ms</td></tr>
<tr><th>Report</th><td>{{.Config.ReportPeriodMs}}ms</td></tr>
<tr><th>Watchdog</th><td>{{.Config.Watchdog}} ({{.Config.WatchdogMs}}ms)</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
