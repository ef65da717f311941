package otel

import (
	"context"
	"errors"
	"fmt"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goVolunteer.MetricsSnapshot
	AuditDropped() uint64
}

type sessionSource interface {
	Snapshot() goVolunteer.Snapshot
}

type observedCounter struct {
	id         goVolunteer.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      goVolunteer.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes store metrics through an OpenTelemetry meter. All
// instruments are observed from one callback per collection cycle.
type OTelExporter struct {
	source       metricsSource
	session      sessionSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	authGauge    metric.Int64ObservableGauge
	hydrateGauge metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments for store on meter.
func NewOTelExporter(meter metric.Meter, store *goVolunteer.Store) (*OTelExporter, error) {
	if store == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, store)
}

// NewOTelExporterFromSource registers instruments for a custom source. Session
// gauges are added when the source also reports a Snapshot.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+3)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if s, ok := source.(sessionSource); ok {
		exporter.session = s
		exporter.authGauge, err = meter.Int64ObservableGauge(internaldefs.SessionAuthenticatedName,
			metric.WithDescription(internaldefs.SessionAuthenticatedHelp))
		if err != nil {
			return nil, fmt.Errorf("create session gauge: %w", err)
		}
		exporter.hydrateGauge, err = meter.Int64ObservableGauge(internaldefs.SessionHydratedName,
			metric.WithDescription(internaldefs.SessionHydratedHelp))
		if err != nil {
			return nil, fmt.Errorf("create session gauge: %w", err)
		}
		observables = append(observables, exporter.authGauge, exporter.hydrateGauge)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.session != nil {
		snap := e.session.Snapshot()
		observer.ObserveInt64(e.authGauge, boolValue(snap.Authenticated))
		observer.ObserveInt64(e.hydrateGauge, boolValue(snap.Hydrated))
	}
	return nil
}

func boolValue(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
