package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	// ErrNilMeter is returned when no OpenTelemetry meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// RenewalsDroppedName is the counter for renewals the dispatcher could not queue.
const RenewalsDroppedName = "gatekeep_renewals_dropped_total"

type metricsSource interface {
	MetricsSnapshot() gatekeep.MetricsSnapshot
	RenewalsDropped() uint64
}

type observedCounter struct {
	id         gatekeep.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram publishes one engine histogram as cumulative bucket gauges keyed by
// the le attribute, plus count and sum gauges.
type observedHistogram struct {
	id      gatekeep.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// OTelExporter publishes engine counters as observable OTel instruments.
type OTelExporter struct {
	source          metricsSource
	registration    metric.Registration
	counters        []observedCounter
	histograms      []observedHistogram
	renewalsDropped metric.Int64ObservableCounter
	// leSets is one attribute set per bucket bound, built once.
	leSets []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *gatekeep.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for _, le := range internaldefs.HistogramBounds {
		e.leSets = append(e.leSets, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count, h.sum)
	}

	dropped, err := meter.Int64ObservableCounter(RenewalsDroppedName,
		metric.WithDescription("Renewals dropped because the dispatcher queue was full."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", RenewalsDroppedName, err)
	}
	e.renewalsDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}
	var err error
	if h.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per le bound.")); err != nil {
		return h, fmt.Errorf("create gauge %s_bucket: %w", def.Name, err)
	}
	if h.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count.")); err != nil {
		return h, fmt.Errorf("create gauge %s_count: %w", def.Name, err)
	}
	if h.sum, err = meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s")); err != nil {
		return h, fmt.Errorf("create gauge %s_sum: %w", def.Name, err)
	}
	return h, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		raw, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.NormalizeBuckets(raw).Cumulative()
		for i, n := range cumulative {
			o.ObserveInt64(h.buckets, int64(n), e.leSets[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(h.sum, snap.HistogramSums[h.id].Seconds())
	}
	o.ObserveInt64(e.renewalsDropped, int64(e.source.RenewalsDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
