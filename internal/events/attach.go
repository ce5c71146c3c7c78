package events

import (
	"strings"
	"time"

	"github.com/smazurov/procspawn/pkg/spawn"
)

// Attach returns an option that republishes the lifecycle of an execution
// on the bus. Output chunks are only forwarded when withOutput is set.
// The option must be used for a single execution.
func (b *Bus) Attach(withOutput bool) spawn.Option {
	// Listeners of one execution are dispatched serially.
	started := false

	opts := []spawn.Option{
		spawn.WithListener(spawn.KindStart, func(ev spawn.Event) {
			e := ev.(spawn.StartEvent)
			started = true
			msg := ExecStartedEvent{
				ID:        e.Ctx.ID,
				Command:   CommandLine(e.Ctx),
				Sync:      e.Ctx.Sync,
				Timestamp: now(),
			}
			if e.Child != nil && e.Child.Process != nil {
				msg.PID = e.Child.Process.Pid
			}
			b.Publish(msg)
		}),
		spawn.WithListener(spawn.KindAbort, func(ev spawn.Event) {
			e := ev.(spawn.AbortEvent)
			b.Publish(ExecAbortedEvent{ID: e.Ctx.ID, Cause: errString(e.Cause), Timestamp: now()})
		}),
		spawn.WithListener(spawn.KindErr, func(ev spawn.Event) {
			e := ev.(spawn.ErrEvent)
			b.Publish(ExecFailedEvent{ID: e.Ctx.ID, Error: errString(e.Err), Timestamp: now()})
		}),
		spawn.WithListener(spawn.KindEnd, func(ev spawn.Event) {
			e := ev.(spawn.EndEvent)
			b.Publish(ExecEndedEvent{
				ID:         e.Ctx.ID,
				Command:    CommandLine(e.Ctx),
				Status:     e.Result.Status,
				Signal:     e.Result.Signal,
				DurationMs: e.Result.DurationMs(),
				Sync:       e.Ctx.Sync,
				Started:    started,
				Error:      errString(e.Result.Err),
				Timestamp:  now(),
			})
		}),
	}

	if withOutput {
		opts = append(opts,
			spawn.WithListener(spawn.KindStdout, func(ev spawn.Event) {
				e := ev.(spawn.StdoutEvent)
				b.Publish(ExecOutputEvent{ID: e.Ctx.ID, Stream: "stdout", Data: e.Chunk})
			}),
			spawn.WithListener(spawn.KindStderr, func(ev spawn.Event) {
				e := ev.(spawn.StderrEvent)
				b.Publish(ExecOutputEvent{ID: e.Ctx.ID, Stream: "stderr", Data: e.Chunk})
			}),
		)
	}
	return spawn.Merge(opts...)
}

// CommandLine renders the command of c for display.
func CommandLine(c *spawn.Context) string {
	if len(c.Args) == 0 {
		return c.Cmd
	}
	return c.Cmd + " " + strings.Join(c.Args, " ")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
