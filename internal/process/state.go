package process

import "time"

// State is the lifecycle phase of a pooled process.
type State string

// Process states.
const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error" // start failure, crash or non-zero exit
)

// Active reports whether a process in state s owns a live execution.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// Info is a snapshot of one pooled process.
type Info struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	Command      string    `json:"command,omitempty"`
	ExecID       string    `json:"exec_id,omitempty"` // current spawn execution
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	RestartCount int       `json:"restart_count"`
	LastError    error     `json:"-"`
}

// Uptime returns how long the current execution has been running, or zero
// when the process is not running.
func (i *Info) Uptime(now time.Time) time.Duration {
	if i.State != StateRunning || i.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(i.StartedAt)
}
