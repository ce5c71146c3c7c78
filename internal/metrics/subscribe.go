package metrics

import (
	"time"

	"github.com/smazurov/procspawn/internal/events"
)

// Subscribe feeds the metrics from execution and pool events published on
// bus. Returns a function that removes every subscription.
func Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ExecStartedEvent) {
			RecordStarted(e.Sync)
		}),
		bus.Subscribe(func(e events.ExecOutputEvent) {
			RecordOutput(e.Stream, len(e.Data))
		}),
		bus.Subscribe(func(_ events.ExecAbortedEvent) {
			RecordAborted()
		}),
		bus.Subscribe(func(e events.ExecEndedEvent) {
			seconds := (time.Duration(e.DurationMs) * time.Millisecond).Seconds()
			RecordEnded(e.Outcome(), seconds, e.Started)
		}),
		bus.Subscribe(func(e events.ProcessStateChangedEvent) {
			SetProcessState(e.Name, e.NewState)
		}),
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
