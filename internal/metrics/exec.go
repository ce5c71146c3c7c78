// Package metrics provides Prometheus metrics for executions and the process pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	execStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "started_total",
		Help:      "Executions launched, by mode",
	}, []string{"mode"})

	execFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "finished_total",
		Help:      "Executions ended, by outcome",
	}, []string{"outcome"})

	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "duration_seconds",
		Help:      "Execution wall time",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
	}, []string{"outcome"})

	execAborted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "aborted_total",
		Help:      "Executions cancelled through their abort handle",
	})

	execOutputBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "output_bytes_total",
		Help:      "Bytes read from child output, by stream",
	}, []string{"stream"})

	execRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "procspawn",
		Subsystem: "exec",
		Name:      "running",
		Help:      "Executions started and not yet ended",
	})
)

func modeLabel(sync bool) string {
	if sync {
		return "sync"
	}
	return "async"
}

// RecordStarted counts a launched execution.
func RecordStarted(sync bool) {
	execStarted.WithLabelValues(modeLabel(sync)).Inc()
	execRunning.Inc()
}

// RecordEnded counts an ended execution. started tells whether a matching
// RecordStarted was made, so the running gauge stays balanced for
// executions that failed before launch.
func RecordEnded(outcome string, seconds float64, started bool) {
	execFinished.WithLabelValues(outcome).Inc()
	execDuration.WithLabelValues(outcome).Observe(seconds)
	if started {
		execRunning.Dec()
	}
}

// RecordAborted counts a cancelled execution.
func RecordAborted() {
	execAborted.Inc()
}

// RecordOutput adds n bytes to the output counter of stream.
func RecordOutput(stream string, n int) {
	execOutputBytes.WithLabelValues(stream).Add(float64(n))
}
