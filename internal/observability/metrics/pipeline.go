package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// PipelineMetrics records extraction outcomes for every processed transcript.
type PipelineMetrics struct {
	service string

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	turnsPerRun    prometheus.Histogram
	planEntries    *prometheus.CounterVec
	readyStages    prometheus.Histogram
	conflictsTotal prometheus.Counter
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	constLabels := prometheus.Labels{"service": service}

	m := &PipelineMetrics{
		service: service,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "runs_total",
				Help:        "Pipeline runs by source and outcome.",
				ConstLabels: constLabels,
			},
			[]string{"source", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "run_duration_seconds",
				Help:        "Pipeline run duration in seconds.",
				Buckets:     []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
				ConstLabels: constLabels,
			},
			[]string{"source"},
		),
		turnsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "turns_per_run",
			Help:        "Transcript turns per successful run.",
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500},
			ConstLabels: constLabels,
		}),
		planEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "apply_plan_entries_total",
				Help:        "Apply plan entries by status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		readyStages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "ready_stages",
			Help:        "Stages whose gate is completion-ready per run.",
			Buckets:     []float64{0, 1, 2, 3},
			ConstLabels: constLabels,
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "conflicts_total",
			Help:        "Fields extracted in more than one section.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(m.runsTotal, m.runDuration, m.turnsPerRun, m.planEntries, m.readyStages, m.conflictsTotal)
	return m
}

func (m *PipelineMetrics) ObserveRun(source string, duration float64, summary domain.RunSummary, err error) {
	if source == "" {
		source = "unknown"
	}
	m.runDuration.WithLabelValues(source).Observe(duration)
	if err != nil {
		m.runsTotal.WithLabelValues(source, outcomeFor(err)).Inc()
		return
	}

	m.runsTotal.WithLabelValues(source, "success").Inc()
	m.turnsPerRun.Observe(float64(summary.Turns))
	m.planEntries.WithLabelValues(string(domain.StatusAutoApply)).Add(float64(summary.AutoApply))
	m.planEntries.WithLabelValues(string(domain.StatusSuggestOnly)).Add(float64(summary.SuggestOnly))
	m.readyStages.Observe(float64(summary.ReadyStages))
	m.conflictsTotal.Add(float64(summary.Conflicts))
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrRunNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrInvalidSchema):
		return "invalid_schema"
	default:
		return "error"
	}
}
