// Package metrics exposes the Prometheus collectors of the API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	enrollmentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitcamp",
		Subsystem: "enrollment",
		Name:      "operations_total",
		Help:      "Join, leave, favorite and unfavorite calls grouped by outcome code.",
	}, []string{"op", "outcome"})

	deletionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitcamp",
		Subsystem: "lifecycle",
		Name:      "deletions_total",
		Help:      "Cascading deletions grouped by root entity and outcome.",
	}, []string{"entity", "outcome"})

	sessionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitcamp",
		Subsystem: "sessions",
		Name:      "events_total",
		Help:      "Session registry mutations grouped by event.",
	}, []string{"event"})

	sweepGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitcamp",
		Subsystem: "sessions",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix timestamp of the most recent stale session sweep.",
	})

	lockWaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitcamp",
		Subsystem: "locks",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for keyed write locks.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

func init() {
	prometheus.MustRegister(enrollmentCounter, deletionCounter, sessionCounter, sweepGauge, lockWaitHistogram)
}

// RecordEnrollment counts an enrollment operation; outcome is "success" or an error code.
func RecordEnrollment(op, outcome string) {
	enrollmentCounter.WithLabelValues(op, outcome).Inc()
}

// RecordDeletion counts a cascading deletion of entity.
func RecordDeletion(entity string, err error) {
	deletionCounter.WithLabelValues(entity, outcomeOf(err)).Inc()
}

// RecordSessionEvent counts a session registry mutation.
func RecordSessionEvent(event string, n int) {
	if n <= 0 {
		return
	}
	sessionCounter.WithLabelValues(event).Add(float64(n))
}

// RecordSweep updates the sweep watermark gauge.
func RecordSweep(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sweepGauge.Set(float64(ts.Unix()))
}

// ObserveLockWait records how long a writer waited for its keys.
func ObserveLockWait(d time.Duration) {
	lockWaitHistogram.Observe(d.Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
