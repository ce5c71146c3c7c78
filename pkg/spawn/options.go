package spawn

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"maps"
	"strings"
	"time"
)

// WithID overrides the generated execution ID.
func WithID(id string) Option {
	return func(c *Context) { c.ID = id }
}

// WithCmd sets the command name and, when given, its arguments.
func WithCmd(cmd string, args ...string) Option {
	return func(c *Context) {
		c.Cmd = cmd
		if len(args) > 0 {
			c.Args = append([]string(nil), args...)
		}
	}
}

// WithArgs replaces the argument list.
func WithArgs(args ...string) Option {
	return func(c *Context) { c.Args = append([]string{}, args...) }
}

// WithCwd sets the working directory.
func WithCwd(dir string) Option {
	return func(c *Context) { c.Cwd = dir }
}

// WithEnv replaces the environment.
func WithEnv(env map[string]string) Option {
	return func(c *Context) { c.Env = maps.Clone(env) }
}

// WithEnvVar sets a single environment variable on top of the current
// environment.
func WithEnvVar(key, value string) Option {
	return func(c *Context) {
		if c.Env == nil {
			c.Env = make(map[string]string)
		}
		c.Env[key] = value
	}
}

// WithShell toggles shell interpretation of Cmd and Args.
func WithShell(enabled bool) Option {
	return func(c *Context) { c.Shell = enabled }
}

// WithShellPath sets the shell interpreter and enables shell mode.
func WithShellPath(path string) Option {
	return func(c *Context) {
		c.Shell = true
		c.ShellPath = path
	}
}

// WithDetached toggles running the child in its own process group.
func WithDetached(detached bool) Option {
	return func(c *Context) { c.Detached = detached }
}

// WithSync selects the blocking execution path.
func WithSync(sync bool) Option {
	return func(c *Context) { c.Sync = sync }
}

// WithInput feeds r to the child's stdin.
func WithInput(r io.Reader) Option {
	return func(c *Context) { c.Input = r }
}

// WithInputString feeds s to the child's stdin.
func WithInputString(s string) Option {
	return WithInput(strings.NewReader(s))
}

// WithInputBytes feeds b to the child's stdin.
func WithInputBytes(b []byte) Option {
	return WithInput(bytes.NewReader(b))
}

// WithStdin sets the stream piped to the child's stdin when no Input is set.
func WithStdin(r io.Reader) Option {
	return func(c *Context) { c.Stdin = r }
}

// WithStdout sets the destination for the child's stdout.
func WithStdout(w io.Writer) Option {
	return func(c *Context) { c.Stdout = w }
}

// WithStderr sets the destination for the child's stderr.
func WithStderr(w io.Writer) Option {
	return func(c *Context) { c.Stderr = w }
}

// WithListener adds a handler for kind. Listeners are attached right before
// launch, so no event can be missed.
func WithListener(kind EventKind, h Handler) Option {
	return func(c *Context) {
		if c.On == nil {
			c.On = make(map[EventKind][]Handler)
		}
		c.On[kind] = append(c.On[kind], h)
	}
}

// WithEmitter shares an Emitter across executions.
func WithEmitter(e *Emitter) Option {
	return func(c *Context) { c.Emitter = e }
}

// WithScheduler sets the scheduler used by the asynchronous path.
func WithScheduler(s Scheduler) Option {
	return func(c *Context) { c.Scheduler = s }
}

// WithCallback sets the completion callback.
func WithCallback(fn func(err error, res *Result)) Option {
	return func(c *Context) { c.Callback = fn }
}

// WithSignal derives the cancellation handle from parent, so cancelling
// parent (or hitting its deadline) aborts the execution.
func WithSignal(parent context.Context) Option {
	return func(c *Context) {
		c.abort(nil)
		c.signal, c.abort = context.WithCancelCause(parent)
	}
}

// WithKillGrace enables SIGKILL escalation after d.
func WithKillGrace(d time.Duration) Option {
	return func(c *Context) { c.KillGrace = d }
}

// WithWaitDelay bounds the stdio drain after the child exits.
func WithWaitDelay(d time.Duration) Option {
	return func(c *Context) { c.WaitDelay = d }
}

// WithLogger sets the logger used by the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.Logger = l }
}
