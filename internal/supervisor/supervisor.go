// Package supervisor keeps a set of named processes running, restarting them
// according to their policy and when their watched files change.
package supervisor

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/internal/process"
	"github.com/smazurov/procspawn/internal/watch"
	"github.com/smazurov/procspawn/pkg/shell"
	"github.com/smazurov/procspawn/pkg/spawn"
)

const defaultRestartDelay = time.Second

// Options configures a Supervisor.
type Options struct {
	// Bus receives process state, execution and file change events (optional).
	Bus *events.Bus

	// Debounce for watched paths. Default watch.DefaultDebounce.
	Debounce time.Duration

	// RestartDelay is the pause before a policy restart. Default 1s.
	RestartDelay time.Duration

	// NoShell executes commands directly instead of through the shell.
	NoShell bool

	StopTimeout time.Duration
	KillGrace   time.Duration
	LogParser   process.LogParser
	Logger      *slog.Logger
}

// Supervisor runs the processes described by a set of specs on a process
// pool.
type Supervisor struct {
	opts     Options
	logger   *slog.Logger
	pool     process.Pool
	mu       sync.Mutex
	specs    map[string]Spec
	watchers map[string]*watch.Watcher
	pending  map[string]*time.Timer
	stopping bool
}

// New creates a supervisor for specs. Nothing runs until Start.
func New(specs map[string]Spec, opts Options) *Supervisor {
	if opts.RestartDelay == 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.Debounce == 0 {
		opts.Debounce = watch.DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("supervisor")
	}

	s := &Supervisor{
		opts:     opts,
		logger:   logger,
		specs:    maps.Clone(specs),
		watchers: make(map[string]*watch.Watcher),
		pending:  make(map[string]*time.Timer),
	}
	if s.specs == nil {
		s.specs = make(map[string]Spec)
	}

	s.pool = process.NewPool(&process.PoolOptions{
		CommandProvider:  s.command,
		NoShell:          opts.NoShell,
		OnStateChange:    s.onStateChange,
		ConfigureProcess: s.configure,
		Bus:              opts.Bus,
		LogParser:        opts.LogParser,
		StopTimeout:      opts.StopTimeout,
		KillGrace:        opts.KillGrace,
		Logger:           logger,
	})
	return s
}

// Start launches every enabled process and its watcher. Failures are logged
// per process; the first one is returned.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	names := slices.Sorted(maps.Keys(s.specs))
	s.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := s.startProcess(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop stops every watcher and process. The supervisor cannot be restarted.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopping = true
	for name, t := range s.pending {
		t.Stop()
		delete(s.pending, name)
	}
	watchers := s.watchers
	s.watchers = make(map[string]*watch.Watcher)
	s.mu.Unlock()

	for name, w := range watchers {
		if err := w.Stop(); err != nil {
			s.logger.Warn("Failed to stop watcher", "process", name, "error", err)
		}
	}
	s.pool.StopAll()
}

// Reload applies a new set of specs: removed processes are stopped, changed
// ones restarted and new ones started.
func (s *Supervisor) Reload(specs map[string]Spec) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	old := s.specs
	s.specs = maps.Clone(specs)
	s.mu.Unlock()

	for _, name := range slices.Sorted(maps.Keys(old)) {
		spec, exists := specs[name]
		switch {
		case !exists:
			s.logger.Info("Process removed from config, stopping", "process", name)
			s.stopProcess(name)
		case !spec.Equal(old[name]):
			s.logger.Info("Process config changed, restarting", "process", name)
			s.stopProcess(name)
			_ = s.startProcess(name)
		default:
			s.logger.Debug("Process config unchanged", "process", name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(specs)) {
		if _, existed := old[name]; !existed {
			s.logger.Info("Process added to config", "process", name)
			_ = s.startProcess(name)
		}
	}
}

// Status returns the pool status of every configured process, sorted by name.
func (s *Supervisor) Status() []*process.Info {
	s.mu.Lock()
	names := slices.Sorted(maps.Keys(s.specs))
	s.mu.Unlock()

	infos := make([]*process.Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, s.pool.GetStatus(name))
	}
	return infos
}

func (s *Supervisor) startProcess(name string) error {
	s.mu.Lock()
	spec, ok := s.specs[name]
	if !ok || spec.Disabled || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if len(spec.Watch) > 0 {
		if err := s.watchProcess(name, spec.Watch); err != nil {
			s.logger.Warn("Failed to watch paths, restart on change disabled", "process", name, "error", err)
		}
	}

	if err := s.pool.Start(name); err != nil {
		s.logger.Error("Failed to start process", "process", name, "error", err)
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

func (s *Supervisor) stopProcess(name string) {
	s.mu.Lock()
	if t, ok := s.pending[name]; ok {
		t.Stop()
		delete(s.pending, name)
	}
	w := s.watchers[name]
	delete(s.watchers, name)
	s.mu.Unlock()

	if w != nil {
		_ = w.Stop()
	}
	_ = s.pool.Stop(name)
}

func (s *Supervisor) watchProcess(name string, paths []string) error {
	w := watch.New(paths,
		watch.WithDebounce(s.opts.Debounce),
		watch.WithBus(s.opts.Bus),
		watch.WithLogger(s.logger.With("process", name)),
	)
	w.OnChange(func(changed []string) {
		s.logger.Info("Watched files changed, restarting", "process", name, "paths", changed)
		if err := s.pool.Restart(name); err != nil {
			s.logger.Error("Failed to restart process", "process", name, "error", err)
		}
	})
	if err := w.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.watchers[name]
	s.watchers[name] = w
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Stop()
	}
	return nil
}

func (s *Supervisor) command(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specs[name]
	if !ok {
		return "", fmt.Errorf("unknown process %q", name)
	}
	return spec.Command, nil
}

func (s *Supervisor) configure(name string) []spawn.Option {
	s.mu.Lock()
	spec := s.specs[name]
	s.mu.Unlock()

	var opts []spawn.Option
	if !s.opts.NoShell {
		// Command lines built by shell.Build use $'...' strings.
		opts = append(opts, spawn.WithShellPath(shell.Interpreter()))
	}
	if spec.Cwd != "" {
		opts = append(opts, spawn.WithCwd(spec.Cwd))
	}
	for _, key := range slices.Sorted(maps.Keys(spec.Env)) {
		opts = append(opts, spawn.WithEnvVar(key, spec.Env[key]))
	}
	return opts
}

// onStateChange applies the restart policy to processes that ended on their own.
func (s *Supervisor) onStateChange(name string, oldState, newState process.State, err error) {
	if oldState != process.StateRunning && oldState != process.StateStarting {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specs[name]
	if !ok || s.stopping {
		return
	}

	restart := false
	switch newState {
	case process.StateError:
		restart = spec.Restart == RestartOnFailure || spec.Restart == RestartAlways
	case process.StateIdle:
		restart = spec.Restart == RestartAlways
	}
	if !restart {
		return
	}

	s.logger.Info("Scheduling restart", "process", name, "policy", spec.Restart, "delay", s.opts.RestartDelay, "error", err)
	if t, ok := s.pending[name]; ok {
		t.Stop()
	}
	s.pending[name] = time.AfterFunc(s.opts.RestartDelay, func() {
		s.mu.Lock()
		delete(s.pending, name)
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			return
		}
		if err := s.pool.Restart(name); err != nil {
			s.logger.Warn("Policy restart failed", "process", name, "error", err)
		}
	})
}
