package spawn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Run normalizes opts into a Context and executes it. In synchronous mode it
// returns after the end event; otherwise it returns right after scheduling.
// Run never panics: a panicking option is reported through the callback and
// the err and end events like any other setup failure.
func Run(opts ...Option) *Context {
	c := defaultContext()
	if err := guard(func() error {
		c.apply(opts)
		return nil
	}); err != nil {
		c.fail(err)
		return c
	}
	return Execute(c)
}

// Execute runs a normalized Context. A Context must be executed at most once.
func Execute(c *Context) *Context {
	c.init()

	if c.Sync {
		if err := guard(c.runSync); err != nil {
			c.fail(err)
		}
		return c
	}

	task := func() {
		if err := guard(c.runAsync); err != nil {
			c.fail(err)
			return
		}
		if h, ok := c.Scheduler.(interface{ holdsUntilDone() bool }); ok && h.holdsUntilDone() {
			<-c.done
		}
	}
	if err := c.Scheduler.Schedule(task); err != nil {
		c.fail(fmt.Errorf("schedule %s: %w", c.ID, err))
	}
	return c
}

// init fills the internals of a Context that did not come from Normalize.
func (c *Context) init() {
	if c.done == nil {
		c.done = make(chan struct{})
	}
	if c.signal == nil {
		c.signal, c.abort = context.WithCancelCause(context.Background())
	}
	if c.Emitter == nil {
		c.Emitter = NewEmitter()
	}
	if c.Scheduler == nil {
		c.Scheduler = DeferredScheduler{}
	}
	if c.Callback == nil {
		c.Callback = func(error, *Result) {}
	}
}

// guard is the failure boundary: it turns a panic into an ErrPanic error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

func (c *Context) runSync() error {
	c.attach()
	c.launched = time.Now()

	if c.Aborted() {
		cause := context.Cause(c.signal)
		c.emit(AbortEvent{Ctx: c, Cause: cause})
		return fmt.Errorf("%w: %w", ErrAborted, cause)
	}

	var stdout, stderr bytes.Buffer
	cmd := c.command()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = c.stdin()

	if err := cmd.Start(); err != nil {
		c.startFailed(fmt.Errorf("start %s: %w", c.Cmd, err))
		return nil
	}
	c.logger().Debug("Process started", "id", c.ID, "pid", cmd.Process.Pid, "sync", true)

	var cause error
	exited := make(chan struct{})
	watched := make(chan struct{})
	go c.watchAbort(cmd, exited, watched, func(err error) { cause = err })

	werr := cmd.Wait()
	close(exited)
	<-watched

	var exitErr *exec.ExitError
	if werr != nil && !errors.As(werr, &exitErr) {
		return fmt.Errorf("wait %s: %w", c.Cmd, werr)
	}

	status, signal := exitStatus(cmd.ProcessState)
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Stdall:   stdout.String() + stderr.String(),
		Status:   status,
		Signal:   signal,
		Duration: time.Since(c.launched),
		Ctx:      c,
	}
	c.logExit(res)

	c.emit(StartEvent{Ctx: c, Result: res})
	if stdout.Len() > 0 {
		c.flush(KindStdout, c.Stdout, stdout.Bytes())
		c.emit(StdoutEvent{Ctx: c, Chunk: stdout.Bytes()})
	}
	if stderr.Len() > 0 {
		c.flush(KindStderr, c.Stderr, stderr.Bytes())
		c.emit(StderrEvent{Ctx: c, Chunk: stderr.Bytes()})
	}
	if cause != nil {
		c.emit(AbortEvent{Ctx: c, Cause: cause})
	}

	c.emitMu.Lock()
	res.Err = c.Err
	c.emitMu.Unlock()

	c.finalize(res, nil, false)
	return nil
}

// startFailed completes a synchronous execution whose child never launched.
// Like any other synchronous outcome it reaches the callback without an
// error; the failure is carried by the result and the err event.
func (c *Context) startFailed(err error) {
	c.logger().Error("Failed to start process", "id", c.ID, "command", c.Cmd, "error", err)

	c.emitMu.Lock()
	if c.Err == nil {
		c.Err = err
	}
	res := &Result{Duration: time.Since(c.launched), Ctx: c, Err: c.Err}
	c.emitMu.Unlock()

	c.emit(StartEvent{Ctx: c, Result: res})
	c.emit(ErrEvent{Ctx: c, Err: err})
	c.finalize(res, nil, false)
}

// flush writes captured synchronous output to the caller's sink.
func (c *Context) flush(kind EventKind, sink io.Writer, p []byte) {
	if sink == nil {
		return
	}
	if _, err := sink.Write(p); err != nil {
		err = fmt.Errorf("write %s: %w", kind, err)
		c.logger().Warn("Output sink failed", "id", c.ID, "stream", string(kind), "error", err)
		c.emitMu.Lock()
		if c.Err == nil {
			c.Err = err
		}
		c.emitMu.Unlock()
		c.emit(ErrEvent{Ctx: c, Err: err})
	}
}

func (c *Context) runAsync() error {
	c.attach()
	c.launched = time.Now()

	if c.Aborted() {
		cause := context.Cause(c.signal)
		c.emit(AbortEvent{Ctx: c, Cause: cause})
		return fmt.Errorf("%w: %w", ErrAborted, cause)
	}

	out := &capture{}
	cmd := c.command()
	cmd.Stdout = newFanout(c, KindStdout, c.Stdout, out)
	cmd.Stderr = newFanout(c, KindStderr, c.Stderr, out)
	cmd.Stdin = c.stdin()

	// Start and the start event happen under emitMu so no output chunk can
	// be emitted before start.
	c.emitMu.Lock()
	err := cmd.Start()
	c.Child = cmd
	c.Emitter.Emit(StartEvent{Ctx: c, Child: cmd})
	c.emitMu.Unlock()

	if err != nil {
		err = fmt.Errorf("start %s: %w", c.Cmd, err)
		c.logger().Error("Failed to start process", "id", c.ID, "command", c.Cmd, "error", err)
		c.close(cmd, out, err)
		return nil
	}
	c.logger().Debug("Process started", "id", c.ID, "pid", cmd.Process.Pid, "sync", false)

	exited := make(chan struct{})
	watched := make(chan struct{})
	go c.watchAbort(cmd, exited, watched, func(cause error) {
		c.emit(AbortEvent{Ctx: c, Cause: cause})
	})
	go c.await(cmd, out, exited, watched)
	return nil
}

// await waits for the child and its stdio, then closes the execution.
func (c *Context) await(cmd *exec.Cmd, out *capture, exited chan<- struct{}, watched <-chan struct{}) {
	werr := cmd.Wait()
	close(exited)
	<-watched

	var runErr error
	var exitErr *exec.ExitError
	if werr != nil && !errors.As(werr, &exitErr) {
		runErr = fmt.Errorf("wait %s: %w", c.Cmd, werr)
		c.logger().Error("Process wait failed", "id", c.ID, "error", runErr)
	}
	c.close(cmd, out, runErr)
}

// close assembles the asynchronous result. runErr, when set, is recorded and
// emitted before the result is built.
func (c *Context) close(cmd *exec.Cmd, out *capture, runErr error) {
	c.emitMu.Lock()
	if runErr != nil {
		if c.Err == nil {
			c.Err = runErr
		}
		c.Emitter.Emit(ErrEvent{Ctx: c, Err: runErr})
	}
	status, signal := exitStatus(cmd.ProcessState)
	res := &Result{
		Stdout:   out.stdout.String(),
		Stderr:   out.stderr.String(),
		Stdall:   out.stdall.String(),
		Status:   status,
		Signal:   signal,
		Duration: time.Since(c.launched),
		Ctx:      c,
		Err:      c.Err,
		Child:    cmd,
	}
	err := c.Err
	c.emitMu.Unlock()

	c.logExit(res)
	c.finalize(res, err, false)
}

// watchAbort terminates the child when the cancellation handle fires before
// it exits, then reports the cause through notify. With KillGrace set, a
// child that outlives the grace period is killed.
func (c *Context) watchAbort(cmd *exec.Cmd, exited <-chan struct{}, watched chan<- struct{}, notify func(error)) {
	defer close(watched)

	select {
	case <-exited:
		return
	case <-c.signal.Done():
	}

	c.terminate(cmd)
	notify(context.Cause(c.signal))

	if c.KillGrace <= 0 {
		return
	}
	timer := time.NewTimer(c.KillGrace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		c.logger().Warn("Graceful termination timeout, forcing kill", "id", c.ID, "pid", cmd.Process.Pid, "grace", c.KillGrace)
		c.kill(cmd)
	}
}

// terminate signals the process group of a detached child, falling back to
// the child itself when the group cannot be signalled.
func (c *Context) terminate(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if c.Detached {
		err := terminateGroup(pid)
		if err == nil {
			c.logger().Info("Sent termination signal to process group", "id", c.ID, "pgid", pid)
			return
		}
		c.logger().Debug("Group termination failed, signalling process", "id", c.ID, "pid", pid, "error", err)
	}
	if err := terminateProcess(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger().Warn("Failed to terminate process", "id", c.ID, "pid", pid, "error", err)
		return
	}
	c.logger().Info("Sent termination signal to process", "id", c.ID, "pid", pid)
}

func (c *Context) kill(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if c.Detached {
		if err := killGroup(pid); err == nil {
			return
		}
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger().Error("Failed to kill process", "id", c.ID, "pid", pid, "error", err)
	}
}

// fail is the failure boundary's completion: empty output, no status, the
// error recorded, then callback, err and end. Setup can fail before launch,
// so the request listeners are attached here when they are not yet.
func (c *Context) fail(err error) {
	c.init()
	c.attach()
	c.logger().Error("Execution failed", "id", c.ID, "command", c.Cmd, "error", err)

	c.emitMu.Lock()
	if c.Err == nil {
		c.Err = err
	}
	c.emitMu.Unlock()

	var elapsed time.Duration
	if !c.launched.IsZero() {
		elapsed = time.Since(c.launched)
	}
	c.finalize(&Result{Duration: elapsed, Ctx: c, Err: err}, err, true)
}

// finalize stores res and completes the execution exactly once. A second
// completion is dropped.
func (c *Context) finalize(res *Result, cbErr error, emitErr bool) {
	first := false
	c.finish.Do(func() {
		first = true

		c.emitMu.Lock()
		c.Fulfilled = res
		c.emitMu.Unlock()

		c.callback(cbErr, res)
		if emitErr {
			c.emit(ErrEvent{Ctx: c, Err: res.Err})
		}
		c.emit(EndEvent{Ctx: c, Result: res})

		for _, off := range c.detach {
			off()
		}
		c.detach = nil
		close(c.done)
	})
	if !first {
		c.logger().Warn("Dropping duplicate completion", "id", c.ID, "error", ErrAlreadyFulfilled)
	}
}

func (c *Context) callback(err error, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger().Error("Completion callback panicked", "id", c.ID, "panic", r)
		}
	}()
	c.Callback(err, res)
}

// attach registers the listeners from On on the emitter, in kind order.
// Only the first call registers.
func (c *Context) attach() {
	if c.attached {
		return
	}
	c.attached = true
	for _, kind := range Kinds {
		for _, h := range c.On[kind] {
			c.detach = append(c.detach, c.Emitter.On(kind, h))
		}
	}
}

func (c *Context) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.Emitter.Emit(ev)
}

// command builds the exec.Cmd for this context without starting it.
func (c *Context) command() *exec.Cmd {
	cmd := buildCommand(c)
	cmd.Dir = c.Cwd
	cmd.Env = c.environ()
	cmd.WaitDelay = c.WaitDelay
	return cmd
}

func (c *Context) stdin() io.Reader {
	if c.Input != nil {
		return c.Input
	}
	return c.Stdin
}

func (c *Context) logExit(res *Result) {
	c.logger().Debug("Process exited",
		"id", c.ID,
		"status", res.ExitCode(),
		"signal", res.Signal,
		"duration_ms", res.DurationMs())
}

// exitStatus returns the exit code, or the signal name when the process was
// killed by a signal. Both are empty when the process never ran.
func exitStatus(state *os.ProcessState) (*int, string) {
	if state == nil {
		return nil, ""
	}
	if sig := signalOf(state); sig != "" {
		return nil, sig
	}
	return intPtr(state.ExitCode()), ""
}
