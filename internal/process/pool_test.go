//go:build unix

package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/pkg/spawn"
)

const loopCommand = `trap 'exit 0' TERM; echo %s; while :; do sleep 0.1; done`

func poolTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(opts PoolOptions) Pool {
	if opts.Logger == nil {
		opts.Logger = poolTestLogger()
	}
	if opts.OutputLogger == nil {
		opts.OutputLogger = poolTestLogger()
	}
	return NewPool(&opts)
}

func loopProvider(id string) (string, error) {
	return fmt.Sprintf(loopCommand, id), nil
}

func waitForState(t *testing.T, pool Pool, id string, want State) *Info {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		info := pool.GetStatus(id)
		if info.State == want {
			return info
		}
		if time.Now().After(deadline) {
			t.Fatalf("process %s: state %v, want %v", id, info.State, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPoolStartStop(t *testing.T) {
	pool := newTestPool(PoolOptions{CommandProvider: loopProvider})

	if err := pool.Start("test1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForState(t, pool, "test1", StateRunning)
	if !pool.IsRunning("test1") {
		t.Error("expected process to be running")
	}

	if err := pool.Stop("test1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if pool.IsRunning("test1") {
		t.Error("expected process to not be running")
	}
	if info := pool.GetStatus("test1"); info.State != StateIdle {
		t.Errorf("expected StateIdle after stop, got %v", info.State)
	}
}

func TestPoolStartAlreadyRunning(t *testing.T) {
	pool := newTestPool(PoolOptions{CommandProvider: loopProvider})

	if err := pool.Start("test1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.StopAll()

	waitForState(t, pool, "test1", StateRunning)

	err := pool.Start("test1")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestPoolGetStatus(t *testing.T) {
	pool := newTestPool(PoolOptions{CommandProvider: loopProvider})

	// Status before start should be idle
	info := pool.GetStatus("test1")
	if info.State != StateIdle {
		t.Errorf("expected StateIdle, got %v", info.State)
	}

	if err := pool.Start("test1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.StopAll()

	info = waitForState(t, pool, "test1", StateRunning)
	if info.ID != "test1" {
		t.Errorf("expected ID 'test1', got %v", info.ID)
	}
	if info.PID <= 0 {
		t.Errorf("expected a PID, got %d", info.PID)
	}
	if info.ExecID == "" {
		t.Error("expected ExecID to be set")
	}
	if info.Command != fmt.Sprintf(loopCommand, "test1") {
		t.Errorf("unexpected command %q", info.Command)
	}
	if info.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestPoolRestart(t *testing.T) {
	var callCount atomic.Int32
	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			callCount.Add(1)
			return loopProvider(id)
		},
	})
	defer pool.StopAll()

	if err := pool.Start("test1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := waitForState(t, pool, "test1", StateRunning)

	if err := pool.Restart("test1"); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	second := waitForState(t, pool, "test1", StateRunning)

	if got := callCount.Load(); got != 2 {
		t.Errorf("expected CommandProvider to be called twice, got %d", got)
	}
	if second.RestartCount != 1 {
		t.Errorf("expected RestartCount 1, got %d", second.RestartCount)
	}
	if second.ExecID == first.ExecID {
		t.Error("expected a new execution after restart")
	}
}

func TestPoolStopAll(t *testing.T) {
	pool := newTestPool(PoolOptions{CommandProvider: loopProvider})

	_ = pool.Start("test1")
	_ = pool.Start("test2")

	waitForState(t, pool, "test1", StateRunning)
	waitForState(t, pool, "test2", StateRunning)

	pool.StopAll()

	if pool.IsRunning("test1") || pool.IsRunning("test2") {
		t.Error("expected both processes to be stopped")
	}

	if err := pool.Start("test3"); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed after StopAll, got %v", err)
	}
}

func TestPoolStateChangeCallback(t *testing.T) {
	var mu sync.Mutex
	var states []State

	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			return fmt.Sprintf("echo %s", id), nil
		},
		OnStateChange: func(id string, _, newState State, cbErr error) {
			if cbErr != nil {
				t.Logf("State change error for %s: %v", id, cbErr)
			}
			mu.Lock()
			states = append(states, newState)
			mu.Unlock()
		},
	})

	_ = pool.Start("test1")

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(states)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	want := []State{StateStarting, StateRunning, StateIdle}
	if !slices.Equal(states, want) {
		t.Errorf("transitions = %v, want %v", states, want)
	}
}

func TestPoolConfigureProcess(t *testing.T) {
	var configuredID string
	handler := &testOutputHandler{}
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return `echo "$POOL_TEST_VALUE"`, nil
		},
		ConfigureProcess: func(id string) []spawn.Option {
			configuredID = id
			return []spawn.Option{spawn.WithEnvVar("POOL_TEST_VALUE", "configured")}
		},
		OutputHandler: handler,
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	waitForState(t, pool, "test1", StateIdle)

	if configuredID != "test1" {
		t.Errorf("expected configuredID 'test1', got %v", configuredID)
	}
	if lines := handler.Lines(); !slices.Equal(lines, []string{"configured"}) {
		t.Errorf("expected [configured], got %v", lines)
	}
}

func TestPoolOutputLogged(t *testing.T) {
	buf := &syncBuffer{}
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return `echo "[error] boom"; echo plain; printf tail`, nil
		},
		OutputLogger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		LogParser:    ParseBracketLevel,
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	waitForState(t, pool, "test1", StateIdle)

	out := buf.String()
	for _, want := range []string{
		`level=ERROR msg=boom stream=stdout`,
		`level=INFO msg=plain stream=stdout`,
		`level=INFO msg=tail stream=stdout`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestPoolNoShell(t *testing.T) {
	handler := &testOutputHandler{}
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return `printf '%s\n' "a b" 'c;d'`, nil
		},
		NoShell:       true,
		OutputHandler: handler,
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	waitForState(t, pool, "test1", StateIdle)

	want := []string{"a b", "c;d"}
	if lines := handler.Lines(); !slices.Equal(lines, want) {
		t.Errorf("expected %v, got %v", want, lines)
	}
}

func TestPoolNoShellParseError(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return `echo "unterminated`, nil
		},
		NoShell: true,
	})

	if err := pool.Start("test1"); err == nil {
		t.Error("expected parse error")
	}
	if info := pool.GetStatus("test1"); info.State != StateIdle {
		t.Errorf("expected StateIdle, got %v", info.State)
	}
}

func TestPoolStartFailure(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return "/nonexistent/procspawn-binary", nil
		},
		NoShell: true,
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	info := waitForState(t, pool, "test1", StateError)
	if info.LastError == nil {
		t.Error("expected LastError to be set")
	}
	if info.PID != 0 {
		t.Errorf("expected no PID, got %d", info.PID)
	}
}

func TestPoolCommandProviderError(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			return "", fmt.Errorf("command error for %s", id)
		},
	})

	err := pool.Start("test1")
	if err == nil {
		t.Error("expected error from CommandProvider")
	}
}

func TestPoolProcessCrash(t *testing.T) {
	var mu sync.Mutex
	var lastErr error
	var lastState State
	var lastID string

	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			return fmt.Sprintf("echo %s; exit 42", id), nil
		},
		OnStateChange: func(id string, oldState, newState State, err error) {
			mu.Lock()
			lastID = id
			lastState = newState
			if err != nil {
				lastErr = err
			}
			mu.Unlock()
			t.Logf("State change: %s %s -> %s", id, oldState, newState)
		},
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	info := waitForState(t, pool, "test1", StateError)
	if info.LastError == nil || !strings.Contains(info.LastError.Error(), "42") {
		t.Errorf("expected LastError with exit code 42, got %v", info.LastError)
	}

	mu.Lock()
	defer mu.Unlock()
	if lastState != StateError {
		t.Errorf("expected callback to receive StateError, got %v", lastState)
	}
	if lastErr == nil {
		t.Error("expected callback to receive error")
	}
	if lastID != "test1" {
		t.Errorf("expected lastID 'test1', got %v", lastID)
	}
}

func TestPoolStartAfterCrash(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return "exit 3", nil
		},
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	waitForState(t, pool, "test1", StateError)

	if err := pool.Start("test1"); err != nil {
		t.Errorf("expected a crashed process to be startable, got %v", err)
	}
	waitForState(t, pool, "test1", StateError)
}

func TestPoolStopEscalatesToKill(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return `trap '' TERM; while :; do sleep 0.1; done`, nil
		},
		KillGrace: 200 * time.Millisecond,
	})
	defer pool.StopAll()

	_ = pool.Start("test1")
	waitForState(t, pool, "test1", StateRunning)

	start := time.Now()
	if err := pool.Stop("test1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected Stop to wait for the kill grace, took %v", elapsed)
	}
	if info := pool.GetStatus("test1"); info.State != StateIdle {
		t.Errorf("expected StateIdle, got %v", info.State)
	}
}

func TestPoolPublishesToBus(t *testing.T) {
	bus := events.New()
	stateCh := make(chan events.ProcessStateChangedEvent, 16)
	endCh := make(chan events.ExecEndedEvent, 1)
	defer bus.Subscribe(func(e events.ProcessStateChangedEvent) { stateCh <- e })()
	defer bus.Subscribe(func(e events.ExecEndedEvent) { endCh <- e })()

	pool := newTestPool(PoolOptions{
		CommandProvider: func(_ string) (string, error) {
			return "true", nil
		},
		Bus: bus,
	})
	defer pool.StopAll()

	_ = pool.Start("worker")

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case e := <-stateCh:
			if e.Name != "worker" {
				t.Errorf("unexpected name %q", e.Name)
			}
			got = append(got, e.NewState)
		case <-timeout:
			t.Fatalf("timeout waiting for state events, got %v", got)
		}
	}
	if want := []string{"starting", "running", "idle"}; !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}

	select {
	case e := <-endCh:
		if e.Outcome() != "success" {
			t.Errorf("expected success outcome, got %q", e.Outcome())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ExecEndedEvent")
	}
}

func TestPoolStartRecoversFromPanickingConfigurer(t *testing.T) {
	var calls atomic.Int32
	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			return fmt.Sprintf("echo %s", id), nil
		},
		ConfigureProcess: func(string) []spawn.Option {
			if calls.Add(1) == 1 {
				return []spawn.Option{func(*spawn.Context) { panic("bad option") }}
			}
			return nil
		},
	})
	defer pool.StopAll()

	err := pool.Start("test1")
	if !errors.Is(err, spawn.ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}

	// The pool must stay usable: the lock was released and nothing was recorded.
	done := make(chan *Info, 1)
	go func() { done <- pool.GetStatus("test1") }()
	select {
	case info := <-done:
		if info.State != StateIdle {
			t.Errorf("expected idle after failed start, got %v", info.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetStatus blocked after a panicking configurer")
	}

	if err := pool.Start("test1"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	waitForState(t, pool, "test1", StateIdle)
	if got := pool.GetStatus("test1").ExecID; got == "" {
		t.Error("expected an execution after the second start")
	}
}

func TestPoolStopNotRunning(t *testing.T) {
	pool := newTestPool(PoolOptions{
		CommandProvider: func(id string) (string, error) {
			return fmt.Sprintf("echo %s", id), nil
		},
	})

	// Stop should not error when process is not running
	if err := pool.Stop("nonexistent"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestNewPoolPanicsWithoutCommandProvider(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when CommandProvider is nil")
		}
	}()

	NewPool(nil)
}
