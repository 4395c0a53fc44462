package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dropshop"

// PipelineMetrics records order fan-out and payment reconciliation outcomes.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	orderDuration  *prometheus.HistogramVec
	skippedLines   *prometheus.CounterVec
	steps          *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	orderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_fanout_duration_seconds",
		Help:      "Duration of order fan-out runs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	skippedLines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_lines_skipped_total",
		Help:      "Order lines skipped during fan-out, by reason.",
	}, []string{"reason"})
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_steps_total",
		Help:      "Supplier group step outcomes during fan-out.",
	}, []string{"step", "outcome"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciled_obligations_total",
		Help:      "Payment obligations handled by gateway reconciliation, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(orderDuration, skippedLines, steps, reconciliation)
	return &PipelineMetrics{
		orderDuration:  orderDuration,
		skippedLines:   skippedLines,
		steps:          steps,
		reconciliation: reconciliation,
	}
}

// ObserveOrder records one ProcessOrder run.
func (m *PipelineMetrics) ObserveOrder(duration time.Duration, result string) {
	if m == nil || m.orderDuration == nil {
		return
	}
	m.orderDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncSkippedLine counts an order line dropped before grouping.
func (m *PipelineMetrics) IncSkippedLine(reason string) {
	if m == nil || m.skippedLines == nil {
		return
	}
	m.skippedLines.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncStep counts a supplier group step outcome.
func (m *PipelineMetrics) IncStep(step, outcome string) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
}

// AddReconciled adds n obligations to the given reconciliation outcome.
func (m *PipelineMetrics) AddReconciled(outcome string, n int) {
	if m == nil || m.reconciliation == nil || n <= 0 {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
