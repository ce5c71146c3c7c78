// Package spawn runs one external command as a child process and reports
// its lifecycle through events, a completion callback and a result value.
//
// An execution is described by a Context. Run builds one from options and
// executes it:
//
//	c := spawn.Run(
//	    spawn.WithCmd("echo", "hello"),
//	    spawn.WithSync(true),
//	)
//	fmt.Print(c.Fulfilled.Stdout)
//
// In asynchronous mode (the default) Run returns immediately and the launch
// is handed to the context's Scheduler. The outcome arrives through the end
// event, the callback, or Wait:
//
//	c := spawn.Run(
//	    spawn.WithCmd("sleep 5"),
//	    spawn.WithListener(spawn.KindAbort, func(e spawn.Event) {
//	        log.Println("aborted:", e.(spawn.AbortEvent).Cause)
//	    }),
//	)
//	c.Abort(errors.New("shutting down"))
//	res := c.Wait()
//
// # Events
//
// Every execution emits start, then any number of stdout, stderr, abort and
// err events, then exactly one end event. The callback fires exactly once,
// right before end. Handlers receive the Context in every payload so a shared
// Emitter can tell concurrent executions apart.
//
// # Cancellation
//
// Abort, or cancelling the parent context given to WithSignal, terminates the
// child. Detached children run in their own process group and the whole group
// receives SIGTERM; if that fails only the direct child is signalled. With
// WithKillGrace, survivors are sent SIGKILL after the grace period.
//
// # Exit status
//
// A non-zero exit or a terminating signal is not an error. Result.Status and
// Result.Signal carry them; Result.Err is set only when the process could not
// be launched or its stdio failed.
package spawn
