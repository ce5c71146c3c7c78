// Package process manages named, long-running executions.
//
// Pool starts executions through pkg/spawn and tracks them by ID:
//   - Start/Stop/Restart individual processes by ID
//   - State tracking (idle, starting, running, stopping, error)
//   - Callback hooks for command generation and state changes
//   - Extra execution options via the Configurer callback
//   - Output routed line by line to a logger through LogSink
//   - StopAll for graceful shutdown of all processes
//
// Stopping aborts the execution, which sends SIGTERM to the process group
// and SIGKILL once the kill grace expires.
//
// Example usage with Pool:
//
//	pool := process.NewPool(&process.PoolOptions{
//	    CommandProvider: func(id string) (string, error) {
//	        return fmt.Sprintf("./worker --queue %s", id), nil
//	    },
//	    OnStateChange: func(id string, old, new process.State, err error) {
//	        log.Printf("Process %s: %s -> %s", id, old, new)
//	    },
//	})
//	pool.Start("emails")
//	defer pool.StopAll()
package process
