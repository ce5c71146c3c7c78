package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/pkg/spawn"
)

const (
	defaultStopTimeout = 10 * time.Second
	defaultKillGrace   = 5 * time.Second
)

var (
	// ErrAlreadyRunning is returned by Start for a process that is starting,
	// running or stopping.
	ErrAlreadyRunning = errors.New("process already running")

	// ErrPoolClosed is returned by Start after StopAll.
	ErrPoolClosed = errors.New("pool closed")

	// ErrStopped is the abort cause of executions stopped through the pool.
	ErrStopped = errors.New("process stopped")
)

// Pool manages multiple named processes with lifecycle control.
type Pool interface {
	// Start starts a process by ID. Returns error if already running.
	Start(id string) error

	// Stop gracefully stops a process by ID.
	Stop(id string) error

	// Restart stops and restarts a process.
	Restart(id string) error

	// GetStatus returns process info. Returns idle state if not found.
	GetStatus(id string) *Info

	// IsRunning checks if a process is currently running.
	IsRunning(id string) bool

	// StopAll gracefully stops all running processes. The pool cannot be
	// started again afterwards.
	StopAll()
}

// managedProcess tracks a running process within the pool.
type managedProcess struct {
	exec         *spawn.Context
	id           string
	command      string
	state        State
	pid          int
	startedAt    time.Time
	restartCount int
	lastError    error
	sinks        []*LogSink
}

// pool implements the Pool interface.
type pool struct {
	opts      PoolOptions
	processes map[string]*managedProcess
	mu        sync.RWMutex
	logger    logging.Logger
	output    logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPool creates a new process pool.
func NewPool(opts *PoolOptions) Pool {
	if opts == nil || opts.CommandProvider == nil {
		panic("PoolOptions with CommandProvider is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("pool")
	}
	output := opts.OutputLogger
	if output == nil {
		output = logging.GetLogger("output")
	}

	return &pool{
		opts:      *opts,
		processes: make(map[string]*managedProcess),
		logger:    logger,
		output:    output,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts a process by ID.
func (p *pool) Start(id string) error {
	p.mu.RLock()
	restarts := 0
	if mp, exists := p.processes[id]; exists {
		restarts = mp.restartCount
	}
	p.mu.RUnlock()

	return p.start(id, restarts)
}

func (p *pool) start(id string, restarts int) error {
	p.mu.RLock()
	err := p.startable(id)
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	mp := &managedProcess{
		id:           id,
		state:        StateStarting,
		restartCount: restarts,
	}
	if err := p.prepare(mp); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.startable(id); err != nil {
		p.mu.Unlock()
		return err
	}
	mp.startedAt = time.Now()
	p.processes[id] = mp
	p.wg.Add(1)
	p.mu.Unlock()

	p.notifyStateChange(id, StateIdle, StateStarting, nil)
	spawn.Execute(mp.exec)
	return nil
}

// startable reports why id cannot be started. The caller holds p.mu.
func (p *pool) startable(id string) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	if mp, exists := p.processes[id]; exists && mp.state.Active() {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	return nil
}

// prepare resolves the command of mp and builds its execution. It runs the
// user supplied providers, so it is called without p.mu and turns a panic
// into an error.
func (p *pool) prepare(mp *managedProcess) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: configure %s: %v", spawn.ErrPanic, mp.id, r)
		}
	}()

	command, err := p.opts.CommandProvider(mp.id)
	if err != nil {
		return fmt.Errorf("failed to generate command: %w", err)
	}
	mp.command = command

	var argv []string
	if p.opts.NoShell {
		if argv, err = parseCommand(command); err != nil {
			return fmt.Errorf("failed to parse command: %w", err)
		}
	}

	mp.exec = spawn.Normalize(p.options(mp, argv)...)
	return nil
}

// options assembles the execution options for mp: pool defaults, then the
// Configurer's, then the ones the pool depends on.
func (p *pool) options(mp *managedProcess, argv []string) []spawn.Option {
	stdout := NewLogSink("stdout", p.output, p.opts.LogParser, p.opts.OutputHandler)
	stderr := NewLogSink("stderr", p.output, p.opts.LogParser, p.opts.OutputHandler)
	mp.sinks = []*LogSink{stdout, stderr}

	killGrace := p.opts.KillGrace
	if killGrace == 0 {
		killGrace = defaultKillGrace
	}

	// TODO: spawn also buffers all output for the Result; long-lived processes
	// need an option to turn that capture off.
	opts := []spawn.Option{
		spawn.WithStdout(stdout),
		spawn.WithStderr(stderr),
		spawn.WithDetached(true),
		spawn.WithKillGrace(killGrace),
		spawn.WithLogger(logging.GetLogger("engine")),
	}
	if p.opts.Bus != nil {
		opts = append(opts, p.opts.Bus.Attach(false))
	}
	if p.opts.ConfigureProcess != nil {
		opts = append(opts, p.opts.ConfigureProcess(mp.id)...)
	}

	if argv != nil {
		opts = append(opts, spawn.WithShell(false), spawn.WithCmd(argv[0]), spawn.WithArgs(argv[1:]...))
	} else {
		opts = append(opts, spawn.WithShell(true), spawn.WithCmd(mp.command), spawn.WithArgs())
	}

	return append(opts,
		spawn.WithSignal(p.ctx),
		spawn.WithListener(spawn.KindStart, func(ev spawn.Event) {
			if se, ok := ev.(spawn.StartEvent); ok && se.Child != nil && se.Child.Process != nil {
				p.markRunning(mp, se.Child.Process.Pid)
			}
		}),
		spawn.WithCallback(func(_ error, res *spawn.Result) {
			p.finish(mp, res)
		}),
	)
}

// markRunning moves mp from starting to running once the child exists.
func (p *pool) markRunning(mp *managedProcess, pid int) {
	p.mu.Lock()
	if mp.state != StateStarting {
		p.mu.Unlock()
		return
	}
	mp.state = StateRunning
	mp.pid = pid
	p.mu.Unlock()

	p.notifyStateChange(mp.id, StateStarting, StateRunning, nil)
	p.logger.Info("Process started", "id", mp.id, "pid", pid, "command", mp.command)
}

// finish records the outcome of mp's execution.
func (p *pool) finish(mp *managedProcess, res *spawn.Result) {
	defer p.wg.Done()

	for _, sink := range mp.sinks {
		sink.Flush()
	}

	p.mu.Lock()
	oldState := mp.state
	switch {
	case oldState == StateStopping || mp.exec.Aborted():
		mp.state = StateIdle
	case res.Err != nil:
		mp.state = StateError
		mp.lastError = res.Err
		p.logger.Error("Process failed", "id", mp.id, "error", res.Err)
	case res.Signal != "":
		mp.state = StateError
		mp.lastError = fmt.Errorf("process killed by %s", res.Signal)
		p.logger.Error("Process crashed", "id", mp.id, "signal", res.Signal)
	case res.ExitCode() != 0:
		mp.state = StateError
		mp.lastError = fmt.Errorf("process exited with code %d", res.ExitCode())
		p.logger.Error("Process crashed", "id", mp.id, "exit_code", res.ExitCode())
	default:
		mp.state = StateIdle
	}
	mp.pid = 0
	newState := mp.state
	lastErr := mp.lastError
	p.mu.Unlock()

	if newState == StateIdle {
		lastErr = nil
	}
	p.notifyStateChange(mp.id, oldState, newState, lastErr)
	p.logger.Info("Process stopped", "id", mp.id, "exit_code", res.ExitCode(), "duration_ms", res.DurationMs())
}

// Stop gracefully stops a process by ID.
func (p *pool) Stop(id string) error {
	p.mu.Lock()
	mp, exists := p.processes[id]
	if !exists {
		p.mu.Unlock()
		return nil
	}

	if mp.state != StateRunning && mp.state != StateStarting {
		p.mu.Unlock()
		return nil
	}

	oldState := mp.state
	mp.state = StateStopping
	p.mu.Unlock()

	p.notifyStateChange(id, oldState, StateStopping, nil)
	p.logger.Info("Stopping process", "id", id)

	mp.exec.Abort(ErrStopped)

	timeout := p.opts.StopTimeout
	if timeout == 0 {
		timeout = defaultStopTimeout
	}
	select {
	case <-mp.exec.Done():
	case <-time.After(timeout):
		p.logger.Warn("Timeout waiting for process to stop", "id", id, "timeout", timeout)
	}

	p.mu.Lock()
	if p.processes[id] == mp {
		delete(p.processes, id)
	}
	p.mu.Unlock()

	return nil
}

// Restart stops and restarts a process.
func (p *pool) Restart(id string) error {
	p.logger.Info("Restarting process", "id", id)

	p.mu.RLock()
	restarts := 0
	if mp, exists := p.processes[id]; exists {
		restarts = mp.restartCount
	}
	p.mu.RUnlock()

	if err := p.Stop(id); err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}
	return p.start(id, restarts+1)
}

// GetStatus returns process info.
func (p *pool) GetStatus(id string) *Info {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mp, exists := p.processes[id]
	if !exists {
		return &Info{ID: id, State: StateIdle}
	}

	return &Info{
		ID:           id,
		State:        mp.state,
		Command:      mp.command,
		ExecID:       mp.exec.ID,
		PID:          mp.pid,
		StartedAt:    mp.startedAt,
		RestartCount: mp.restartCount,
		LastError:    mp.lastError,
	}
}

// IsRunning checks if a process is currently running.
func (p *pool) IsRunning(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mp, exists := p.processes[id]
	return exists && mp.state == StateRunning
}

// StopAll gracefully stops all running processes.
func (p *pool) StopAll() {
	p.logger.Info("Stopping all processes")

	p.mu.Lock()
	p.cancel()
	ids := make([]string, 0, len(p.processes))
	for id := range p.processes {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		_ = p.Stop(id)
	}

	p.wg.Wait()
	p.logger.Info("All processes stopped")
}

// notifyStateChange invokes the OnStateChange callback and publishes the
// transition on the bus when configured.
func (p *pool) notifyStateChange(id string, oldState, newState State, err error) {
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(id, oldState, newState, err)
	}
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(events.ProcessStateChangedEvent{
			Name:      id,
			OldState:  string(oldState),
			NewState:  string(newState),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
