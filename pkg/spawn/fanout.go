package spawn

import (
	"bytes"
	"fmt"
	"io"
)

// capture accumulates the output of one execution. All access happens with
// the owning context's emitMu held.
type capture struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	stdall bytes.Buffer
}

// fanout is the writer handed to the child for one stream. Each chunk is
// written to the caller's sink, accumulated, and emitted as an event.
type fanout struct {
	c      *Context
	kind   EventKind
	sink   io.Writer
	buf    *bytes.Buffer
	all    *bytes.Buffer
	failed bool
}

func newFanout(c *Context, kind EventKind, sink io.Writer, out *capture) *fanout {
	buf := &out.stdout
	if kind == KindStderr {
		buf = &out.stderr
	}
	return &fanout{c: c, kind: kind, sink: sink, buf: buf, all: &out.stdall}
}

// Write never returns an error to the child's copy goroutine. A failing sink
// is recorded once, reported as an err event and skipped from then on; the
// output keeps being captured.
func (f *fanout) Write(p []byte) (int, error) {
	c := f.c
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	f.buf.Write(p)
	f.all.Write(p)

	if f.sink != nil && !f.failed {
		if _, err := f.sink.Write(p); err != nil {
			f.failed = true
			err = fmt.Errorf("write %s: %w", f.kind, err)
			if c.Err == nil {
				c.Err = err
			}
			c.logger().Warn("Output sink failed", "id", c.ID, "stream", string(f.kind), "error", err)
			c.Emitter.Emit(ErrEvent{Ctx: c, Err: err})
		}
	}

	chunk := bytes.Clone(p)
	if f.kind == KindStderr {
		c.Emitter.Emit(StderrEvent{Ctx: c, Chunk: chunk})
	} else {
		c.Emitter.Emit(StdoutEvent{Ctx: c, Chunk: chunk})
	}
	return len(p), nil
}
