package web

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/sweeney/field-logger/internal/status"
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
	"value": func(r status.Reading) string {
		if !r.Available {
			return "NA"
		}
		return strconv.FormatFloat(r.Value, 'g', -1, 64)
	},
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
<meta http-equiv="refresh" content="10">
<title>{{.Config.Device}} logger</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.na { color: orange; }
.ok { color: green; }
.bad { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Config.Device}}</h1>
{{if .LastError}}<p class="bad">{{.LastError}}</p>{{end}}

<h2>Last record</h2>
<table>
<tr><th>Timestamp</th><td>{{orDash .Timestamp}}</td></tr>
{{range .Readings}}<tr><th>{{.Name}}</th><td{{if not .Available}} class="na" title="{{.Error}}"{{end}}>{{value .}}</td></tr>
{{end}}</table>

<h2>Storage</h2>
<table>
<tr><th>File</th><td>{{orDash .Storage.Path}}</td></tr>
<tr><th>Records</th><td>{{.Storage.Appends}}</td></tr>
<tr><th>Flushes</th><td>{{.Storage.Flushes}}</td></tr>
<tr><th>Rejected</th><td>{{.Storage.Rejected}}</td></tr>
<tr><th>Unsynced</th><td>{{.Storage.CyclesSinceSync}} / {{.Storage.MaxCycles}}</td></tr>
<tr><th>Card</th><td class="{{if .CardPresent}}ok{{else}}bad{{end}}">{{if .CardPresent}}present{{else}}missing{{end}}</td></tr>
</table>

<h2>Loop</h2>
<table>
<tr><th>Iterations</th><td>{{.Loop.Iterations}}</td></tr>
<tr><th>Recoverable errors</th><td>{{.Loop.Recoverable}}</td></tr>
<tr><th>Overruns</th><td>{{.Loop.Overruns}} ({{.Loop.Missed}} ticks missed)</td></tr>
<tr><th>Last run</th><td>{{.Loop.LastRun}}</td></tr>
</table>

<h2>Indicator</h2>
<table>
<tr><th>State</th><td>{{orDash .Indicator.State}}</td></tr>
<tr><th>Bucket</th><td>{{orDash .Indicator.Bucket}}</td></tr>
<tr><th>Color</th><td>{{orDash .Indicator.Color}}</td></tr>
<tr><th>Battery alert</th><td class="{{if .BatteryAlert}}bad{{else}}ok{{end}}">{{if .BatteryAlert}}asserted{{else}}clear{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}ok{{else}}bad{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orDash .Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Mount</th><td>{{.Config.Mount}}</td></tr>
<tr><th>Period</th><td>{{.Config.Period}}</td></tr>
<tr><th>Flush every</th><td>{{.Config.MaxCycles}} records</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
