package spawn

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	c := Normalize()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, cwd, c.Cwd)
	assert.Empty(t, c.Args)
	assert.True(t, c.Shell)
	assert.True(t, c.Detached)
	assert.False(t, c.Sync)
	assert.Nil(t, c.Input)
	assert.IsType(t, &Sink{}, c.Stdout)
	assert.IsType(t, &Sink{}, c.Stderr)
	assert.IsType(t, DeferredScheduler{}, c.Scheduler)
	assert.NotNil(t, c.Emitter)
	assert.NotNil(t, c.Callback)
	assert.NoError(t, c.Signal().Err())
	assert.Nil(t, c.Fulfilled)
	assert.Equal(t, os.Getenv("PATH"), c.Env["PATH"])
}

func TestNormalizeGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		id := Normalize().ID
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNormalizeLaterOptionsWin(t *testing.T) {
	c := Normalize(
		WithCmd("echo", "a"),
		WithCmd("printf"),
		WithCwd("/tmp"),
		WithCwd("/"),
		WithSync(true),
		WithShell(false),
	)

	assert.Equal(t, "printf", c.Cmd)
	assert.Equal(t, []string{"a"}, c.Args, "WithCmd without args keeps previous args")
	assert.Equal(t, "/", c.Cwd)
	assert.True(t, c.Sync)
	assert.False(t, c.Shell)
}

func TestMerge(t *testing.T) {
	base := Merge(WithCmd("ls"), WithDetached(false))
	c := Normalize(base, nil, Merge(WithArgs("-la"), WithID("fixed")))

	assert.Equal(t, "ls", c.Cmd)
	assert.Equal(t, []string{"-la"}, c.Args)
	assert.False(t, c.Detached)
	assert.Equal(t, "fixed", c.ID)
}

func TestEnvOptions(t *testing.T) {
	env := map[string]string{"A": "1"}
	c := Normalize(WithEnv(env), WithEnvVar("B", "2"))

	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, c.Env)
	assert.Equal(t, []string{"A=1", "B=2"}, c.environ())
	assert.NotContains(t, env, "B", "WithEnv must copy the map")
}

func TestEnvironMapSkipsMalformed(t *testing.T) {
	env := environMap([]string{"A=1", "B=x=y", "broken", "=C"})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, env)
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "echo", Normalize(WithCmd("echo")).commandLine())
	assert.Equal(t, "echo a b", Normalize(WithCmd("echo", "a", "b")).commandLine())
}

func TestShellPathEnablesShell(t *testing.T) {
	c := Normalize(WithShell(false), WithShellPath("/bin/bash"))
	assert.True(t, c.Shell)
	assert.Equal(t, "/bin/bash", c.ShellPath)
}

func TestAbortCause(t *testing.T) {
	c := Normalize()
	assert.False(t, c.Aborted())

	cause := errors.New("stop")
	c.Abort(cause)
	assert.True(t, c.Aborted())
	assert.ErrorIs(t, context.Cause(c.Signal()), cause)
}

func TestWithSignalFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := Normalize(WithSignal(parent))
	assert.False(t, c.Aborted())

	cancel()
	assert.True(t, c.Aborted())
	assert.ErrorIs(t, context.Cause(c.Signal()), context.Canceled)
}

func TestAwaitTimesOut(t *testing.T) {
	c := Normalize()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := c.Await(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResultHelpers(t *testing.T) {
	r := &Result{Stdout: "out\n", Duration: 1500 * time.Millisecond}
	assert.Equal(t, int64(1500), r.DurationMs())
	assert.Equal(t, -1, r.ExitCode())
	assert.Equal(t, "out\n", r.String())

	r.Status = intPtr(3)
	assert.Equal(t, 3, r.ExitCode())
}
