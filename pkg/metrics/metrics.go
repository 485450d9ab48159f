package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServiceCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_service_calls_total",
		Help: "Total number of reporting service calls",
	}, []string{"call", "outcome"})

	ServiceCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "t212_service_call_duration_seconds",
		Help:    "Duration of reporting service calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})

	AcquisitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_acquisition_duration_seconds",
		Help:    "Time from report request to downloaded bytes",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
	})

	RowsTransformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_rows_total",
		Help: "Rows seen by the transformer",
	}, []string{"stage"})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Total number of pipeline runs",
	}, []string{"status"})

	PipelineStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Duration of pipeline steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordServiceCall(call, outcome string, duration time.Duration) {
	ServiceCalls.WithLabelValues(call, outcome).Inc()
	ServiceCallDuration.WithLabelValues(call).Observe(duration.Seconds())
}

func RecordRows(in, out int) {
	RowsTransformed.WithLabelValues("input").Add(float64(in))
	RowsTransformed.WithLabelValues("output").Add(float64(out))
}

func RecordPipelineRun(status string) {
	PipelineRuns.WithLabelValues(status).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
