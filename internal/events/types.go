package events

// Event type constants for kelindar/event.
const (
	TypeExecStarted uint32 = iota + 1
	TypeExecOutput
	TypeExecAborted
	TypeExecFailed
	TypeExecEnded
	TypeProcessStateChanged
	TypeFilesChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ExecStartedEvent is published when a child process has been launched.
type ExecStartedEvent struct {
	ID        string `json:"id" example:"6f1c2a9e-1b7a-4c55-9d0e-2f7d41c1a0b3" doc:"Execution identifier"`
	Command   string `json:"command" example:"echo hello" doc:"Command line"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Process ID (asynchronous executions only)"`
	Sync      bool   `json:"sync" doc:"Whether the execution blocked its caller"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Start timestamp"`
}

// Type returns the event type identifier for ExecStartedEvent.
func (e ExecStartedEvent) Type() uint32 { return TypeExecStarted }

// ExecOutputEvent carries one chunk of child output.
type ExecOutputEvent struct {
	ID     string `json:"id"`
	Stream string `json:"stream" example:"stdout" doc:"stdout or stderr"`
	Data   []byte `json:"data"`
}

// Type returns the event type identifier for ExecOutputEvent.
func (e ExecOutputEvent) Type() uint32 { return TypeExecOutput }

// ExecAbortedEvent is published when an execution is cancelled.
type ExecAbortedEvent struct {
	ID        string `json:"id"`
	Cause     string `json:"cause" example:"context canceled" doc:"Cancellation cause"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ExecAbortedEvent.
func (e ExecAbortedEvent) Type() uint32 { return TypeExecAborted }

// ExecFailedEvent is published for launch and stdio errors.
type ExecFailedEvent struct {
	ID        string `json:"id"`
	Error     string `json:"error" example:"exec: \"nope\": executable file not found in $PATH" doc:"Error description"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ExecFailedEvent.
func (e ExecFailedEvent) Type() uint32 { return TypeExecFailed }

// ExecEndedEvent is published once per execution with its outcome.
type ExecEndedEvent struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	Status     *int   `json:"status" example:"0" doc:"Exit code, null when killed by a signal or never started"`
	Signal     string `json:"signal,omitempty" example:"SIGTERM" doc:"Terminating signal"`
	DurationMs int64  `json:"duration_ms" example:"12" doc:"Wall time in milliseconds"`
	Sync       bool   `json:"sync"`
	Started    bool   `json:"started" doc:"Whether a start event preceded this one"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for ExecEndedEvent.
func (e ExecEndedEvent) Type() uint32 { return TypeExecEnded }

// Outcome classifies the execution for metrics and logs.
func (e ExecEndedEvent) Outcome() string {
	switch {
	case e.Error != "":
		return "error"
	case e.Signal != "":
		return "signaled"
	case e.Status != nil && *e.Status == 0:
		return "success"
	default:
		return "exit_nonzero"
	}
}

// ProcessStateChangedEvent is published by the process pool on every state
// transition of a named execution.
type ProcessStateChangedEvent struct {
	Name      string `json:"name" example:"worker" doc:"Pool entry name"`
	OldState  string `json:"old_state" example:"starting"`
	NewState  string `json:"new_state" example:"running"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessStateChangedEvent.
func (e ProcessStateChangedEvent) Type() uint32 { return TypeProcessStateChanged }

// FilesChangedEvent is published by the watcher after a debounced burst of
// file system changes.
type FilesChangedEvent struct {
	Paths     []string `json:"paths"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for FilesChangedEvent.
func (e FilesChangedEvent) Type() uint32 { return TypeFilesChanged }
