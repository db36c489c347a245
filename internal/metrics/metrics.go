package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for pipeline runs.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Runs finished by terminal status
	RunsTotal *prometheus.CounterVec

	// Stage latencies by stage name
	StageDuration *prometheus.HistogramVec

	// Stage failures by stage and error code
	StageFailures *prometheus.CounterVec

	// Chosen cluster count of the most recent evaluation
	BestK prometheus.Gauge

	// Entities matched / unmatched during the geo merge
	MergeMatched   prometheus.Counter
	MergeUnmatched *prometheus.CounterVec

	// Map renders by outcome: rendered or fallback
	MapRenders *prometheus.CounterVec
}

// New registers all pipeline metrics with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geocluster_runs_total",
			Help: "Total pipeline runs by terminal status",
		}, []string{"status"}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocluster_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geocluster_stage_failures_total",
			Help: "Stage failures by stage and error code",
		}, []string{"stage", "code"}),

		BestK: f.NewGauge(prometheus.GaugeOpts{
			Name: "geocluster_best_k",
			Help: "Cluster count selected by the most recent evaluation",
		}),

		MergeMatched: f.NewCounter(prometheus.CounterOpts{
			Name: "geocluster_merge_matched_total",
			Help: "Geometry rows matched to a cluster",
		}),

		MergeUnmatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geocluster_merge_unmatched_total",
			Help: "Unmatched entities by side",
		}, []string{"side"}), // side: "geometry", "partition"

		MapRenders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geocluster_map_renders_total",
			Help: "Map renders by outcome",
		}, []string{"state"}),
	}
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementStageFailure records a failed stage.
func (m *Metrics) IncrementStageFailure(stage, code string) {
	if m != nil {
		m.StageFailures.WithLabelValues(stage, code).Inc()
	}
}

// IncrementRun records a finished run.
func (m *Metrics) IncrementRun(status string) {
	if m != nil {
		m.RunsTotal.WithLabelValues(status).Inc()
	}
}

// SetBestK records the selected cluster count.
func (m *Metrics) SetBestK(k int) {
	if m != nil {
		m.BestK.Set(float64(k))
	}
}

// ObserveMerge records merge match counts.
func (m *Metrics) ObserveMerge(matched, missingInGeometry, missingInPartition int) {
	if m == nil {
		return
	}
	m.MergeMatched.Add(float64(matched))
	m.MergeUnmatched.WithLabelValues("geometry").Add(float64(missingInGeometry))
	m.MergeUnmatched.WithLabelValues("partition").Add(float64(missingInPartition))
}

// IncrementRender records a map render outcome.
func (m *Metrics) IncrementRender(state string) {
	if m != nil {
		m.MapRenders.WithLabelValues(state).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
