package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ternarybob/smoke/internal/models"
)

// Recorder counts waits, scenarios and captures for one run. It satisfies
// interfaces.WaitObserver and interfaces.RunObserver.
type Recorder struct {
	registry *prometheus.Registry

	waitAttempts *prometheus.CounterVec
	waitTimeouts prometheus.Counter
	waitDuration prometheus.Histogram
	scenarios    *prometheus.CounterVec
	scenarioTime prometheus.Histogram
	captures     *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		waitAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smoke",
			Name:      "wait_attempts_total",
			Help:      "Predicate evaluations made by bounded waits.",
		}, []string{"result"}),
		waitTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke",
			Name:      "wait_timeouts_total",
			Help:      "Waits that ran out of time.",
		}),
		waitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke",
			Name:      "wait_duration_seconds",
			Help:      "Time spent in bounded waits.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smoke",
			Name:      "scenarios_total",
			Help:      "Scenarios by outcome.",
		}, []string{"result"}),
		scenarioTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke",
			Name:      "scenario_duration_seconds",
			Help:      "Scenario body run time.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		captures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smoke",
			Name:      "captures_total",
			Help:      "Artifact captures by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WaitCompleted records one finished wait
func (r *Recorder) WaitCompleted(description string, attempts int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.waitAttempts.WithLabelValues(result).Add(float64(attempts))
	r.waitDuration.Observe(elapsed.Seconds())

	var timeoutErr *models.TimeoutError
	if errors.As(err, &timeoutErr) {
		r.waitTimeouts.Inc()
	}
}

// ScenarioCompleted records a scenario outcome
func (r *Recorder) ScenarioCompleted(name string, outcome models.Outcome, elapsed time.Duration) {
	r.scenarios.WithLabelValues(string(outcome)).Inc()
	if outcome != models.OutcomeSkip {
		r.scenarioTime.Observe(elapsed.Seconds())
	}
}

// CaptureCompleted records a capture attempt
func (r *Recorder) CaptureCompleted(label string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.captures.WithLabelValues(result).Inc()
}

// WriteTextfile writes the metrics in the node exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
