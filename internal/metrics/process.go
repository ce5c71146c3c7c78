package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "procspawn",
		Subsystem: "pool",
		Name:      "process_state",
		Help:      "1 for the current state of each pool entry, 0 otherwise",
	}, []string{"name", "state"})

	processTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procspawn",
		Subsystem: "pool",
		Name:      "state_transitions_total",
		Help:      "State transitions of pool entries",
	}, []string{"name", "state"})

	// Local cache of the last known state per entry.
	stateCache   = make(map[string]string)
	stateCacheMu sync.RWMutex
)

// SetProcessState records the current state of a pool entry.
func SetProcessState(name, state string) {
	stateCacheMu.Lock()
	prev, ok := stateCache[name]
	stateCache[name] = state
	stateCacheMu.Unlock()

	if ok && prev != state {
		processState.WithLabelValues(name, prev).Set(0)
	}
	processState.WithLabelValues(name, state).Set(1)
	processTransitions.WithLabelValues(name, state).Inc()
}

// DeleteProcessMetrics removes all metrics for a pool entry.
func DeleteProcessMetrics(name string) {
	stateCacheMu.Lock()
	delete(stateCache, name)
	stateCacheMu.Unlock()

	processState.DeletePartialMatch(prometheus.Labels{"name": name})
	processTransitions.DeletePartialMatch(prometheus.Labels{"name": name})
}

// GetProcessState returns the last recorded state of a pool entry.
func GetProcessState(name string) (string, bool) {
	stateCacheMu.RLock()
	defer stateCacheMu.RUnlock()
	state, ok := stateCache[name]
	return state, ok
}

// GetAllProcessStates returns a copy of the last recorded state per entry.
func GetAllProcessStates() map[string]string {
	stateCacheMu.RLock()
	defer stateCacheMu.RUnlock()
	result := make(map[string]string, len(stateCache))
	for name, state := range stateCache {
		result[name] = state
	}
	return result
}
