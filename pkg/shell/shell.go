package shell

import (
	"context"
	"os/exec"
	"slices"
	"strings"

	"github.com/smazurov/procspawn/pkg/spawn"
)

// Shell runs command templates with a fixed set of execution options.
// A Shell is immutable; With returns a derived copy.
type Shell struct {
	opts  []spawn.Option
	quote Quoter
	ctx   context.Context
}

// New creates a Shell. Commands are interpreted by bash when it is installed,
// since Quote emits $'...' tokens, and by /bin/sh otherwise.
func New(opts ...spawn.Option) *Shell {
	base := []spawn.Option{spawn.WithShellPath(Interpreter())}
	return &Shell{
		opts:  append(base, opts...),
		quote: Quote,
		ctx:   context.Background(),
	}
}

// Interpreter returns the shell used by New.
func Interpreter() string {
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	return spawn.DefaultShell
}

// With returns a Shell with opts applied after the current ones.
func (s *Shell) With(opts ...spawn.Option) *Shell {
	next := *s
	next.opts = append(slices.Clone(s.opts), opts...)
	return &next
}

// WithQuoter returns a Shell that quotes substitutions with q.
func (s *Shell) WithQuoter(q Quoter) *Shell {
	next := *s
	next.quote = q
	return &next
}

// WithContext returns a Shell whose executions are aborted when ctx ends.
// Pending arguments are resolved under ctx as well.
func (s *Shell) WithContext(ctx context.Context) *Shell {
	next := s.With(spawn.WithSignal(ctx))
	next.ctx = ctx
	return next
}

// Run builds a command line from pieces and args and executes it. Without
// pending arguments the command starts immediately, and in synchronous mode
// the returned Promise is already settled. With pending arguments they are
// resolved in the background first; a resolution error settles the Promise
// without running anything.
func (s *Shell) Run(pieces []string, args ...any) *Promise {
	if !IsPending(args) {
		return s.exec(Build(s.quote, pieces, args...))
	}

	p := NewFuture[*spawn.Result]()
	go func() {
		cmd, err := BuildContext(s.ctx, s.quote, pieces, args...)
		if err != nil {
			p.Error(err)
			return
		}
		res, err := s.exec(cmd).Get()
		p.settle(res, err)
	}()
	return p
}

// Runf is Run with a template where each {} marks an argument:
//
//	sh.Runf("grep -r {} {}", pattern, dir)
func (s *Shell) Runf(tmpl string, args ...any) *Promise {
	return s.Run(splitTemplate(tmpl, len(args)), args...)
}

// Command returns the command line Run would execute for already resolved
// arguments.
func (s *Shell) Command(pieces []string, args ...any) string {
	return Build(s.quote, pieces, args...)
}

func (s *Shell) exec(cmd string) *Promise {
	p := NewFuture[*spawn.Result]()
	// The end listener goes first so it is registered even when a later
	// option fails.
	opts := make([]spawn.Option, 0, len(s.opts)+2)
	opts = append(opts, spawn.WithListener(spawn.KindEnd, func(ev spawn.Event) {
		res := ev.(spawn.EndEvent).Result
		p.settle(res, res.Err)
	}))
	opts = append(opts, s.opts...)
	opts = append(opts, spawn.WithCmd(cmd))
	spawn.Run(opts...)
	return p
}

// splitTemplate cuts tmpl at its first n placeholders. Extra placeholders
// stay in the text.
func splitTemplate(tmpl string, n int) []string {
	pieces := strings.SplitN(tmpl, "{}", n+1)
	for len(pieces) < n+1 {
		pieces = append(pieces, "")
	}
	return pieces
}
