package process

import (
	"time"

	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/pkg/spawn"
)

// CommandProvider generates the command line for a process ID.
type CommandProvider func(id string) (command string, err error)

// StateChangeCallback is called when a process state changes.
type StateChangeCallback func(id string, oldState, newState State, err error)

// Configurer returns extra execution options for a process before it
// starts (environment, working directory, shell path). They override the
// pool defaults for sinks, detaching and kill grace. The command, the abort
// signal and the completion callback are always set by the pool.
type Configurer func(id string) []spawn.Option

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// CommandProvider generates the command for a given process ID (required).
	CommandProvider CommandProvider

	// NoShell splits the command into an argument vector and executes it
	// directly instead of handing it to the shell.
	NoShell bool

	// OnStateChange is called when process state transitions (optional).
	OnStateChange StateChangeCallback

	// ConfigureProcess allows customization of the execution before start (optional).
	ConfigureProcess Configurer

	// Bus receives ProcessStateChangedEvent and the execution events of
	// every process (optional).
	Bus *events.Bus

	// OutputLogger receives process output line by line. Defaults to the
	// "output" module logger.
	OutputLogger logging.Logger

	// LogParser extracts a level from each output line (optional).
	LogParser LogParser

	// OutputHandler receives every output line (optional).
	OutputHandler OutputHandler

	// StopTimeout bounds how long Stop waits for a process to exit. Default 10s.
	StopTimeout time.Duration

	// KillGrace is the delay between SIGTERM and SIGKILL on Stop. Default 5s.
	KillGrace time.Duration

	// Logger for pool operations. If nil, uses the "pool" module logger.
	Logger logging.Logger
}
