package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// RenewalsDroppedName is the counter for renewals the dispatcher could not queue.
const RenewalsDroppedName = "gatekeep_renewals_dropped_total"

type metricsSource interface {
	MetricsSnapshot() gatekeep.MetricsSnapshot
	RenewalsDropped() uint64
}

// PrometheusExporter renders engine counters in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *gatekeep.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics. It applies no authentication of its own.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics in text exposition format. Disabled metrics
// render as an empty string.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.RenewalsDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w textWriter
	w.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		w.histogram(def.Name, def.Help, internaldefs.NormalizeBuckets(raw).Cumulative(), snap.HistogramSums[def.ID].Seconds())
	}
	w.counter(RenewalsDroppedName, "Renewals dropped because the dispatcher queue was full.", dropped)

	return w.String()
}

type textWriter struct {
	strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, labels, value string) {
	w.WriteString(name)
	if labels != "" {
		w.WriteString("{" + labels + "}")
	}
	w.WriteString(" " + value + "\n")
}

func (w *textWriter) counter(name, help string, value uint64) {
	w.header(name, help, "counter")
	w.sample(name, "", strconv.FormatUint(value, 10))
}

func (w *textWriter) histogram(name, help string, cumulative internaldefs.Buckets, sumSeconds float64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `le="`+le+`"`, strconv.FormatUint(cumulative[i], 10))
	}
	w.sample(name+"_sum", "", strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	w.sample(name+"_count", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
