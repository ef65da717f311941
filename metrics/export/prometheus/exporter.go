package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads. *goVolunteer.Store satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goVolunteer.MetricsSnapshot
	AuditDropped() uint64
}

type sessionSource interface {
	Snapshot() goVolunteer.Snapshot
}

// Exporter renders session and navigation metrics in Prometheus text
// exposition format.
type Exporter struct {
	source MetricsSource
}

// New creates an exporter that reads from store.
func New(store *goVolunteer.Store) *Exporter {
	return &Exporter{source: store}
}

// NewFromSource creates an exporter from a custom [MetricsSource]. When the
// source also reports a session Snapshot, session gauges are rendered too.
func NewFromSource(source MetricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. Disabled metrics render as "".
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeSample(&b, def.Name, def.Help, "counter", snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	writeSample(&b, internaldefs.AuditDroppedName, "Dropped audit events due to dispatcher backpressure.", "counter", dropped)

	if s, ok := p.source.(sessionSource); ok {
		snap := s.Snapshot()
		writeSample(&b, internaldefs.SessionAuthenticatedName, internaldefs.SessionAuthenticatedHelp, "gauge", boolValue(snap.Authenticated))
		writeSample(&b, internaldefs.SessionHydratedName, internaldefs.SessionHydratedHelp, "gauge", boolValue(snap.Hydrated))
	}

	return b.String()
}

func boolValue(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, help, kind string, value uint64) {
	writeHeader(b, name, help, kind)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// Snapshots keep bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
