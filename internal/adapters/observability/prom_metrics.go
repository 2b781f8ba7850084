package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrewgt3/PlantAGI/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the feed and upstream-client metrics on the given
// registerer (the default registry when nil) and returns the adapter.
func NewPromObs(reg prometheus.Registerer) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_ticks_total",
		Help: "Synthetic samples generated across all live windows.",
	})
	seedOK := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_seed_success_total",
		Help: "History seed fetches applied to a window.",
	})
	seedFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_seed_failures_total",
		Help: "History seed fetches that failed and left the window synthetic-only.",
	})
	seedStale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_seed_discarded_total",
		Help: "Seed results discarded because the subject changed while in flight.",
	})
	streamMerged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_stream_merged_total",
		Help: "Real-time stream samples merged into live windows.",
	})
	snapErr := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_snapshot_errors_total",
		Help: "Window snapshot store failures.",
	})
	upstreamReq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_upstream_requests_total",
		Help: "Requests issued against the inference API.",
	})
	upstreamErr := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantagi_upstream_errors_total",
		Help: "Failed requests against the inference API.",
	})
	windowLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plantagi_window_length",
		Help: "Current number of samples in the active live window.",
	})
	seedLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plantagi_seed_fetch_latency_seconds",
		Help:    "Latency of history seed fetches.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	reg.MustRegister(ticks, seedOK, seedFail, seedStale, streamMerged,
		snapErr, upstreamReq, upstreamErr, windowLen, seedLatency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"plantagi_ticks_total":             ticks,
			"plantagi_seed_success_total":      seedOK,
			"plantagi_seed_failures_total":     seedFail,
			"plantagi_seed_discarded_total":    seedStale,
			"plantagi_stream_merged_total":     streamMerged,
			"plantagi_snapshot_errors_total":   snapErr,
			"plantagi_upstream_requests_total": upstreamReq,
			"plantagi_upstream_errors_total":   upstreamErr,
		},
		gauges: map[string]prometheus.Gauge{
			"plantagi_window_length": windowLen,
		},
		histos: map[string]prometheus.Observer{
			"plantagi_seed_fetch_latency_seconds": seedLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, renderFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, renderFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, renderFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

var _ ports.Observability = (*PromObs)(nil)

func renderFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
