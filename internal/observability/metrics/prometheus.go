package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/internal/privacy"
	"github.com/inferloop/anonyguard/pkg/constants"
)

// PrometheusMetrics records engine outcomes in a private registry. It
// implements privacy.Recorder.
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *PrometheusConfig

	evaluationsTotal      *prometheus.CounterVec
	evaluationDuration    prometheus.Histogram
	violationsTotal       *prometheus.CounterVec
	lastScore             prometheus.Gauge
	enforcementsTotal     *prometheus.CounterVec
	enforcementIterations prometheus.Histogram
	enforcementDuration   prometheus.Histogram
	rowsRemovedTotal      prometheus.Counter
	noiseColumnsTotal     *prometheus.CounterVec
	noiseCellsChanged     *prometheus.CounterVec
	epsilonSpentTotal     prometheus.Counter
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Namespace string            `json:"namespace"`
	Subsystem string            `json:"subsystem"`
	Labels    map[string]string `json:"labels"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = &PrometheusConfig{Namespace: constants.DefaultMetricsNamespace}
	}
	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler for hosts that serve metrics themselves.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	pm.logger.WithField("path", path).Debug("Wrote metrics textfile")
	return nil
}

func (pm *PrometheusMetrics) ObserveEvaluation(eval *privacy.PrivacyEvaluation, duration time.Duration) {
	outcome := "clean"
	if eval.HasViolations() {
		outcome = "violations"
	}
	pm.evaluationsTotal.WithLabelValues(outcome).Inc()
	pm.evaluationDuration.Observe(duration.Seconds())
	pm.lastScore.Set(eval.Score)
	for _, v := range eval.Violations {
		pm.violationsTotal.WithLabelValues(string(v.Metric)).Inc()
	}
}

func (pm *PrometheusMetrics) ObserveEnforcement(result *privacy.EnforcementResult, duration time.Duration) {
	pm.enforcementsTotal.WithLabelValues(string(result.Status)).Inc()
	pm.enforcementIterations.Observe(float64(result.Iterations))
	pm.enforcementDuration.Observe(duration.Seconds())
	pm.rowsRemovedTotal.Add(float64(result.RowsRemoved))
	if result.Final != nil {
		pm.lastScore.Set(result.Final.Score)
	}
}

func (pm *PrometheusMetrics) ObserveNoise(result *privacy.NoiseResult) {
	for _, col := range result.Columns {
		pm.noiseColumnsTotal.WithLabelValues(col.Mechanism).Inc()
		pm.noiseCellsChanged.WithLabelValues(col.Mechanism).Add(float64(col.Changed))
	}
	pm.epsilonSpentTotal.Add(result.Epsilon)
}

func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	subsystem := pm.config.Subsystem
	labels := prometheus.Labels(pm.config.Labels)

	pm.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "evaluations_total",
			Help:        "Total number of privacy evaluations by outcome",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)

	pm.evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "evaluation_duration_seconds",
			Help:        "Privacy evaluation duration in seconds",
			Buckets:     []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			ConstLabels: labels,
		},
	)

	pm.violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "violations_total",
			Help:        "Total number of class violations by privacy model",
			ConstLabels: labels,
		},
		[]string{"metric"},
	)

	pm.lastScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "privacy_score",
			Help:        "Composite privacy score of the last evaluated dataset",
			ConstLabels: labels,
		},
	)

	pm.enforcementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "enforcements_total",
			Help:        "Total number of enforcement runs by terminal status",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	pm.enforcementIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "enforcement_iterations",
			Help:        "Removal passes per enforcement run",
			Buckets:     []float64{0, 1, 2, 3, 5, 10, 25, 100},
			ConstLabels: labels,
		},
	)

	pm.enforcementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "enforcement_duration_seconds",
			Help:        "Enforcement run duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
	)

	pm.rowsRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "rows_removed_total",
			Help:        "Total number of rows removed by enforcement",
			ConstLabels: labels,
		},
	)

	pm.noiseColumnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "noise_columns_total",
			Help:        "Total number of columns perturbed by mechanism",
			ConstLabels: labels,
		},
		[]string{"mechanism"},
	)

	pm.noiseCellsChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "noise_cells_changed_total",
			Help:        "Total number of cells whose value changed by mechanism",
			ConstLabels: labels,
		},
		[]string{"mechanism"},
	)

	pm.epsilonSpentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "epsilon_spent_total",
			Help:        "Sum of epsilon over all noise releases",
			ConstLabels: labels,
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		pm.evaluationsTotal,
		pm.evaluationDuration,
		pm.violationsTotal,
		pm.lastScore,
		pm.enforcementsTotal,
		pm.enforcementIterations,
		pm.enforcementDuration,
		pm.rowsRemovedTotal,
		pm.noiseColumnsTotal,
		pm.noiseCellsChanged,
		pm.epsilonSpentTotal,
	}

	for _, collector := range collectors {
		if err := pm.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}
