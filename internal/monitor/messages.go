package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Notification titles.
const (
	TitleOutageDetected     = "Outage Detected"
	TitleOutageResolved     = "Outage Resolved"
	TitlePacketLossDetected = "Packet Loss Detected"
	TitlePacketLossResolved = "Packet Loss Resolved"
	TitleHighLatency        = "High Latency Detected"
	TitleLatencyRecovered   = "Latency Recovered"
	TitleDNSFailure         = "DNS Failure"
	TitleDNSRecovered       = "DNS Recovered"
)

// timeLayout renders episode start times in notifications.
const timeLayout = "Mon Jan 2 2006 15:04:05 MST"

// FormatDuration renders d as e.g. "1 hour, 2 minutes, 5 seconds".
// Sub-second remainders are dropped and zero renders as "0 seconds".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)

	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatTime renders t in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}

type message struct {
	title string
	body  string
	ok    bool
}

func (m *Monitor) outageDetected(host string, count int, since time.Time) message {
	return message{
		title: TitleOutageDetected,
		body: fmt.Sprintf("Internet is DOWN! Ping to %s has failed %d consecutive times since %s",
			host, count, FormatTime(since, m.location)),
	}
}

func (m *Monitor) outageResolved(since time.Time, d time.Duration) message {
	return message{
		title: TitleOutageResolved,
		body: fmt.Sprintf("Internet is back from outage that started %s which lasted %s",
			FormatTime(since, m.location), FormatDuration(d)),
		ok: true,
	}
}

func (m *Monitor) packetLossDetected(loss int, since time.Time) message {
	return message{
		title: TitlePacketLossDetected,
		body: fmt.Sprintf("Internet packet loss of %d%% detected, degraded since %s",
			loss, FormatTime(since, m.location)),
	}
}

func (m *Monitor) packetLossResolved(since time.Time, d time.Duration) message {
	return message{
		title: TitlePacketLossResolved,
		body: fmt.Sprintf("Internet has recovered from packet loss that started %s which lasted %s",
			FormatTime(since, m.location), FormatDuration(d)),
		ok: true,
	}
}

func (m *Monitor) highLatency(latencyMs float64, since time.Time) message {
	return message{
		title: TitleHighLatency,
		body: fmt.Sprintf("High Internet latency detected. Average latency: %.1f ms (limit %.0f ms), degraded since %s",
			latencyMs, m.highLatencyMs, FormatTime(since, m.location)),
	}
}

func (m *Monitor) latencyRecovered(since time.Time, d time.Duration) message {
	return message{
		title: TitleLatencyRecovered,
		body: fmt.Sprintf("Internet has recovered from high latency that started %s which lasted %s",
			FormatTime(since, m.location), FormatDuration(d)),
		ok: true,
	}
}

func (m *Monitor) dnsFailure(since time.Time) message {
	return message{
		title: TitleDNSFailure,
		body: fmt.Sprintf("DNS resolution of %s is failing since %s",
			m.dnsHost, FormatTime(since, m.location)),
	}
}

func (m *Monitor) dnsRecovered(since time.Time, d time.Duration) message {
	return message{
		title: TitleDNSRecovered,
		body: fmt.Sprintf("DNS has recovered from failure that started %s which lasted %s",
			FormatTime(since, m.location), FormatDuration(d)),
		ok: true,
	}
}
