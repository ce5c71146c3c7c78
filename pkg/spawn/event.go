package spawn

import "os/exec"

// EventKind names one of the lifecycle notifications of an execution.
type EventKind string

// Event kinds, in the order they can occur.
const (
	KindStart  EventKind = "start"
	KindStdout EventKind = "stdout"
	KindStderr EventKind = "stderr"
	KindAbort  EventKind = "abort"
	KindErr    EventKind = "err"
	KindEnd    EventKind = "end"
)

// Kinds lists every event kind.
var Kinds = []EventKind{KindStart, KindStdout, KindStderr, KindAbort, KindErr, KindEnd}

// Event is a lifecycle notification. The set of implementations is closed:
// StartEvent, StdoutEvent, StderrEvent, AbortEvent, ErrEvent and EndEvent.
type Event interface {
	Kind() EventKind
	Context() *Context
	event()
}

// Handler receives events from an Emitter.
type Handler func(Event)

// StartEvent is emitted once the child has been launched. In asynchronous
// mode Child is set; in synchronous mode the process has already exited and
// Result is set instead.
type StartEvent struct {
	Ctx    *Context
	Child  *exec.Cmd
	Result *Result
}

// StdoutEvent carries one chunk read from the child's stdout.
type StdoutEvent struct {
	Ctx   *Context
	Chunk []byte
}

// StderrEvent carries one chunk read from the child's stderr.
type StderrEvent struct {
	Ctx   *Context
	Chunk []byte
}

// AbortEvent is emitted when the cancellation handle fires.
type AbortEvent struct {
	Ctx   *Context
	Cause error
}

// ErrEvent is emitted when the execution hits a runtime or setup error.
type ErrEvent struct {
	Ctx *Context
	Err error
}

// EndEvent is emitted exactly once, last, with the final result.
type EndEvent struct {
	Ctx    *Context
	Result *Result
}

func (e StartEvent) Kind() EventKind  { return KindStart }
func (e StdoutEvent) Kind() EventKind { return KindStdout }
func (e StderrEvent) Kind() EventKind { return KindStderr }
func (e AbortEvent) Kind() EventKind  { return KindAbort }
func (e ErrEvent) Kind() EventKind    { return KindErr }
func (e EndEvent) Kind() EventKind    { return KindEnd }

func (e StartEvent) Context() *Context  { return e.Ctx }
func (e StdoutEvent) Context() *Context { return e.Ctx }
func (e StderrEvent) Context() *Context { return e.Ctx }
func (e AbortEvent) Context() *Context  { return e.Ctx }
func (e ErrEvent) Context() *Context    { return e.Ctx }
func (e EndEvent) Context() *Context    { return e.Ctx }

func (StartEvent) event()  {}
func (StdoutEvent) event() {}
func (StderrEvent) event() {}
func (AbortEvent) event()  {}
func (ErrEvent) event()    {}
func (EndEvent) event()    {}
