// Package metrics exposes pipeline and cache measurements to prometheus.
package metrics

import (
	"time"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements pipeline.Metrics and cache.Observer.
type Collector struct {
	BufferedBytes     prometheus.Gauge
	Processing        prometheus.Gauge
	SynthesisDuration prometheus.Histogram
	SentenceFailures  *prometheus.CounterVec
	SessionsCanceled  prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	CacheWrites       *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		BufferedBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "readalong_pipeline_buffered_bytes",
				Help: "Synthesized audio waiting to be played",
			},
		),
		Processing: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "readalong_pipeline_processing_sentences",
				Help: "Sentences being synthesized",
			},
		),
		SynthesisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "readalong_pipeline_synthesis_duration_seconds",
				Help:    "Time to synthesize and align one sentence",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		SentenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readalong_pipeline_sentence_failures_total",
				Help: "Sentences that failed, by stage",
			},
			[]string{"stage"},
		),
		SessionsCanceled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "readalong_pipeline_sessions_canceled_total",
				Help: "Reading sessions ended by stop, navigation or speed change",
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readalong_cache_lookups_total",
				Help: "Alignment cache lookups, by outcome",
			},
			[]string{"outcome"},
		),
		CacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readalong_cache_writes_total",
				Help: "Alignment cache writes, by status",
			},
			[]string{"status"},
		),
	}
}

func (c *Collector) SetBufferedBytes(n int64) { c.BufferedBytes.Set(float64(n)) }

func (c *Collector) SetProcessing(n int) { c.Processing.Set(float64(n)) }

func (c *Collector) ObserveSynthesis(d time.Duration) { c.SynthesisDuration.Observe(d.Seconds()) }

func (c *Collector) SentenceFailed(stage tts.Stage) {
	c.SentenceFailures.WithLabelValues(string(stage)).Inc()
}

func (c *Collector) SessionCanceled() { c.SessionsCanceled.Inc() }

func (c *Collector) CacheLookup(outcome string) {
	c.CacheLookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) CacheWrite(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.CacheWrites.WithLabelValues(status).Inc()
}
