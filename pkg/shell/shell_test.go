//go:build unix

package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/procspawn/pkg/spawn"
)

func await(t *testing.T, p *Promise) (*spawn.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := p.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "execution did not finish")
	return res, err
}

func TestShellSync(t *testing.T) {
	p := New(spawn.WithSync(true)).Run([]string{"echo bar"})

	select {
	case <-p.Done():
	default:
		t.Fatal("sync promise not settled on return")
	}
	res, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, "bar\n", res.Stdout)
	require.NotNil(t, res.Status)
	assert.Equal(t, 0, *res.Status)
}

func TestShellAsync(t *testing.T) {
	res, err := await(t, New().Run([]string{"echo baz"}))
	require.NoError(t, err)
	assert.Equal(t, "baz\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode())
}

func TestShellQuotesArguments(t *testing.T) {
	res, err := await(t, New().Runf("printf '%s|' {}", []string{"a b", "it's", "$HOME"}))
	require.NoError(t, err)
	assert.Equal(t, "a b|it's|$HOME|", res.Stdout)
}

func TestShellChainsResults(t *testing.T) {
	sh := New()
	first := sh.Run([]string{"echo hello"})
	res, err := await(t, sh.Runf("echo {} world", first))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", res.Stdout)
}

func TestShellAwaitsExecutionContext(t *testing.T) {
	c := spawn.Run(spawn.WithCmd("sleep 0.05; echo ctx"))
	res, err := await(t, New().Runf("echo {}", c))
	require.NoError(t, err)
	assert.Equal(t, "ctx\n", res.Stdout)
}

func TestShellPendingError(t *testing.T) {
	boom := errors.New("boom")
	res, err := await(t, New().Runf("echo {}", Resolved("", boom)))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}

func TestShellNonZeroExitSettlesWithoutError(t *testing.T) {
	res, err := await(t, New().Run([]string{"exit 4"}))
	require.NoError(t, err)
	assert.Equal(t, 4, res.ExitCode())
}

func TestShellWithDoesNotMutateParent(t *testing.T) {
	parent := New()
	child := parent.With(spawn.WithSync(true))

	assert.Len(t, parent.opts, 1)
	assert.Len(t, child.opts, 2)
}

func TestShellWithContextAborts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := await(t, New().WithContext(ctx).Run([]string{"sleep 30"}))
	require.NoError(t, err)
	assert.Equal(t, "SIGTERM", res.Signal)
}

func TestShellCommand(t *testing.T) {
	sh := New().WithQuoter(func(s string) string { return "<" + s + ">" })
	assert.Equal(t, "echo <a>", sh.Command([]string{"echo ", ""}, "a"))
}

func TestShellSettlesWhenSchedulingFails(t *testing.T) {
	s := spawn.NewSerialScheduler()
	s.Close()

	res, err := await(t, New(spawn.WithScheduler(s)).Runf("echo hi"))
	assert.ErrorIs(t, err, spawn.ErrSchedulerClosed)
	require.NotNil(t, res)
	assert.Nil(t, res.Status)
}

func TestShellSettlesWhenAnOptionPanics(t *testing.T) {
	tests := []struct {
		name string
		opt  spawn.Option
	}{
		{"panicking option", func(*spawn.Context) { panic("bad option") }},
		{"nil signal", spawn.WithSignal(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := await(t, New(tt.opt).Runf("echo hi"))
			assert.ErrorIs(t, err, spawn.ErrPanic)
			require.NotNil(t, res)
			assert.Empty(t, res.Stdout)
		})
	}
}
