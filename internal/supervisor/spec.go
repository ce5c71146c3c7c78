package supervisor

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RestartPolicy decides what happens when a supervised process exits on its own.
type RestartPolicy string

// Restart policies.
const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// ErrInvalidSpec is wrapped by every validation failure.
var ErrInvalidSpec = errors.New("invalid process spec")

// Spec describes one supervised process.
type Spec struct {
	Command  string            `toml:"command"`
	Cwd      string            `toml:"cwd,omitempty"`
	Env      map[string]string `toml:"env,omitempty"`
	Watch    []string          `toml:"watch,omitempty"`
	Restart  RestartPolicy     `toml:"restart,omitempty"`
	Disabled bool              `toml:"disabled,omitempty"`
}

// Validate checks the spec and fills the default restart policy.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidSpec)
	}
	switch s.Restart {
	case "":
		s.Restart = RestartNever
	case RestartNever, RestartOnFailure, RestartAlways:
	default:
		return fmt.Errorf("%w: unknown restart policy %q", ErrInvalidSpec, s.Restart)
	}
	return nil
}

// Equal reports whether a change from s to other requires a restart.
func (s Spec) Equal(other Spec) bool {
	return s.Command == other.Command &&
		s.Cwd == other.Cwd &&
		maps.Equal(s.Env, other.Env) &&
		slices.Equal(s.Watch, other.Watch) &&
		s.Restart == other.Restart &&
		s.Disabled == other.Disabled
}

// file is the process section of the configuration file.
type file struct {
	Processes map[string]Spec `toml:"processes"`
}

// LoadSpecs reads the [processes.<name>] tables from a TOML file. A missing
// file yields no specs.
func LoadSpecs(path string) (map[string]Spec, error) {
	specs := make(map[string]Spec)
	if path == "" {
		return specs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return specs, nil
		}
		return nil, fmt.Errorf("failed to read process config: %w", err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse process config: %w", err)
	}

	for name, spec := range f.Processes {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("process %s: %w", name, err)
		}
		specs[name] = spec
	}
	return specs, nil
}
