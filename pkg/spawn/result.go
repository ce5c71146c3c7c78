package spawn

import (
	"os/exec"
	"time"
)

// Result is the final outcome of an execution.
type Result struct {
	Stdout string
	Stderr string
	// Stdall holds stdout and stderr interleaved in the order the engine
	// observed them. In synchronous mode it is Stdout followed by Stderr.
	Stdall string

	// Status is the exit code, nil when the process did not exit normally
	// or never started.
	Status *int
	// Signal is the name of the terminating signal, such as "SIGTERM".
	Signal string

	Duration time.Duration

	Ctx   *Context
	Err   error
	Child *exec.Cmd
}

// DurationMs returns Duration in milliseconds.
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// ExitCode returns Status, or -1 when it is absent.
func (r *Result) ExitCode() int {
	if r.Status == nil {
		return -1
	}
	return *r.Status
}

// String returns the captured stdout, so a Result can be interpolated
// directly into another command.
func (r *Result) String() string {
	return r.Stdout
}

func intPtr(n int) *int {
	return &n
}
