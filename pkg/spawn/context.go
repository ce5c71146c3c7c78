package spawn

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultShell is the interpreter used when Shell is set and no ShellPath
// was given.
const DefaultShell = "/bin/sh"

// Context describes one execution: the request, its control handles and,
// once the engine has run, its outcome. A Context is created per execution
// and must not be reused.
//
// Outcome fields (Child, Fulfilled, Err) are written by the engine. Read
// them after Done is closed.
type Context struct {
	ID        string
	Cmd       string
	Args      []string
	Cwd       string
	Env       map[string]string
	Shell     bool
	ShellPath string
	Detached  bool
	Sync      bool

	// Input is fed to the child's stdin, which is closed once Input is
	// drained. When Input is nil, Stdin is used instead. When both are nil
	// the child's stdin is empty.
	Input io.Reader
	Stdin io.Reader

	Stdout io.Writer
	Stderr io.Writer

	// On holds listeners attached to Emitter right before launch.
	On        map[EventKind][]Handler
	Emitter   *Emitter
	Scheduler Scheduler
	Callback  func(err error, res *Result)

	// KillGrace is how long an aborted child may linger after SIGTERM before
	// it is sent SIGKILL. Zero disables escalation.
	KillGrace time.Duration

	// WaitDelay bounds how long the engine waits for stdio to drain after
	// the child exits. Zero waits indefinitely.
	WaitDelay time.Duration

	Logger *slog.Logger

	Child     *exec.Cmd
	Fulfilled *Result
	Err       error

	signal context.Context
	abort  context.CancelCauseFunc

	// emitMu serializes every emission and outcome write of this execution.
	emitMu   sync.Mutex
	finish   sync.Once
	done     chan struct{}
	detach   []func()
	attached bool
	launched time.Time
}

// Option configures a Context. A partial request is a list of options;
// options are applied in order after the defaults, so later ones win.
type Option func(*Context)

// Merge combines several options into one.
func Merge(opts ...Option) Option {
	return func(c *Context) {
		for _, opt := range opts {
			if opt != nil {
				opt(c)
			}
		}
	}
}

// Normalize builds a fully resolved Context from the defaults and opts.
// It performs no validation: an invalid command surfaces when it is run.
func Normalize(opts ...Option) *Context {
	c := defaultContext()
	c.apply(opts)
	return c
}

func defaultContext() *Context {
	cwd, _ := os.Getwd()
	signal, abort := context.WithCancelCause(context.Background())
	return &Context{
		ID:        uuid.NewString(),
		Cwd:       cwd,
		Args:      []string{},
		Env:       environMap(os.Environ()),
		Shell:     true,
		Detached:  true,
		Stdout:    NewSink(),
		Stderr:    NewSink(),
		On:        make(map[EventKind][]Handler),
		Emitter:   NewEmitter(),
		Scheduler: DeferredScheduler{},
		Callback:  func(error, *Result) {},
		signal:    signal,
		abort:     abort,
		done:      make(chan struct{}),
	}
}

func (c *Context) apply(opts []Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
}

// Signal returns the cancellation handle observed by the engine.
func (c *Context) Signal() context.Context {
	return c.signal
}

// Abort triggers cancellation. A nil cause is reported as context.Canceled.
// Aborting does not produce a result by itself; the execution still ends
// through its normal close path.
func (c *Context) Abort(cause error) {
	c.abort(cause)
}

// Aborted reports whether the cancellation handle has fired.
func (c *Context) Aborted() bool {
	return c.signal.Err() != nil
}

// Done returns a channel closed after the end event has been dispatched.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the execution is fulfilled and returns its result.
func (c *Context) Wait() *Result {
	<-c.done
	return c.Fulfilled
}

// Await is Wait bounded by ctx. It returns ctx's error if ctx ends first;
// the execution keeps running in that case.
func (c *Context) Await(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.Fulfilled, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// environ renders Env as a sorted KEY=value list.
func (c *Context) environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// commandLine is what the shell interprets when Shell is set.
func (c *Context) commandLine() string {
	if len(c.Args) == 0 {
		return c.Cmd
	}
	return c.Cmd + " " + strings.Join(c.Args, " ")
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
