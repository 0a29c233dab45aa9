// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kickbase-market-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	PlayersFetched     prometheus.Counter
	PlayerFetchErrors  prometheus.Counter
	ReloadsTotal       *prometheus.CounterVec
	ObservationsStored prometheus.Gauge
	PlayerFetchLatency prometheus.Histogram

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	FeatureRows       *prometheus.GaugeVec

	// Model metrics
	ModelRMSE        prometheus.Gauge
	ModelMAE         prometheus.Gauge
	ModelR2          prometheus.Gauge
	ModelDirectional prometheus.Gauge

	// Output metrics
	Recommendations   *prometheus.GaugeVec
	MessagesPublished prometheus.Counter

	// Health metrics
	LastSuccessfulReload   prometheus.Gauge
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "kickbase_market_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		PlayersFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "players_fetched_total",
			Help:      "Total number of players fetched and merged",
		}),
		PlayerFetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "player_fetch_errors_total",
			Help:      "Total number of players whose fetch failed",
		}),
		ReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "reloads_total",
			Help:      "Total number of observation table reloads by status",
		}, []string{"status"}),
		ObservationsStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_stored",
			Help:      "Rows in the observation table after the last reload",
		}),
		PlayerFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "player_fetch_seconds",
			Help:      "Time to fetch and merge one player",
			Buckets:   prometheus.DefBuckets,
		}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline phase runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		FeatureRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "feature_rows",
			Help:      "Feature rows produced by the last run by partition",
		}, []string{"partition"}),

		ModelRMSE: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "rmse",
			Help:      "Hold-out RMSE of the last trained model",
		}),
		ModelMAE: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "mae",
			Help:      "Hold-out MAE of the last trained model",
		}),
		ModelR2: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "r2",
			Help:      "Hold-out R squared of the last trained model",
		}),
		ModelDirectional: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "directional_accuracy_percent",
			Help:      "Share of hold-out rows with the correct sign of change",
		}),

		Recommendations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "recommendations",
			Help:      "Recommendation rows produced by the last run",
		}, []string{"kind"}),
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "messages_published_total",
			Help:      "Total number of recommendation messages published",
		}),

		LastSuccessfulReload: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reload_timestamp",
			Help:      "Unix timestamp of last successful reload",
		}),
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordPlayerFetched records one merged player and its fetch duration.
func RecordPlayerFetched(d time.Duration) {
	DefaultMetrics.PlayersFetched.Inc()
	DefaultMetrics.PlayerFetchLatency.Observe(d.Seconds())
}

// RecordPlayerFetchError increments the failed player counter.
func RecordPlayerFetchError() {
	DefaultMetrics.PlayerFetchErrors.Inc()
}

// RecordReload records the outcome of a reload.
func RecordReload(status string, rows int, at time.Time) {
	DefaultMetrics.ReloadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.ObservationsStored.Set(float64(rows))
		DefaultMetrics.LastSuccessfulReload.Set(float64(at.Unix()))
	}
}

// RecordPipelineRun records a pipeline phase execution.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordFeatureRows records the partition sizes of a feature pass.
func RecordFeatureRows(historical, live int) {
	DefaultMetrics.FeatureRows.WithLabelValues("historical").Set(float64(historical))
	DefaultMetrics.FeatureRows.WithLabelValues("live").Set(float64(live))
}

// RecordEvaluation publishes hold-out metrics of the last model.
func RecordEvaluation(e domain.Evaluation) {
	DefaultMetrics.ModelRMSE.Set(e.RMSE)
	DefaultMetrics.ModelMAE.Set(e.MAE)
	DefaultMetrics.ModelR2.Set(e.R2)
	DefaultMetrics.ModelDirectional.Set(e.DirectionalPercent)
}

// RecordRecommendations records how many rows of a recommendation kind were produced.
func RecordRecommendations(kind string, n int) {
	DefaultMetrics.Recommendations.WithLabelValues(kind).Set(float64(n))
}

// RecordMessagesPublished adds n published messages.
func RecordMessagesPublished(n int) {
	DefaultMetrics.MessagesPublished.Add(float64(n))
}

// MarkPipelineSuccess stamps the last successful pipeline run.
func MarkPipelineSuccess(at time.Time) {
	DefaultMetrics.LastSuccessfulPipeline.Set(float64(at.Unix()))
}
