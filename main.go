package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/procspawn/cmd"
	"github.com/smazurov/procspawn/internal/config"
	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/internal/process"
	"github.com/smazurov/procspawn/internal/supervisor"
	"github.com/smazurov/procspawn/internal/systemd"
	"github.com/smazurov/procspawn/internal/watch"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"procspawn.toml"`

	// Supervisor settings
	NoShell      bool   `help:"Run process commands without a shell" default:"false" toml:"supervisor.no_shell" env:"SUPERVISOR_NO_SHELL"`
	RestartDelay string `help:"Pause before a policy restart" default:"1s" toml:"supervisor.restart_delay" env:"SUPERVISOR_RESTART_DELAY"`
	StopTimeout  string `help:"Time to wait for a process to stop" default:"10s" toml:"supervisor.stop_timeout" env:"SUPERVISOR_STOP_TIMEOUT"`
	KillGrace    string `help:"Time between SIGTERM and SIGKILL" default:"5s" toml:"supervisor.kill_grace" env:"SUPERVISOR_KILL_GRACE"`
	Debounce     string `help:"Debounce for watched paths" default:"300ms" toml:"supervisor.debounce" env:"SUPERVISOR_DEBOUNCE"`
	WatchConfig  bool   `help:"Reload processes when the config file changes" default:"true" toml:"supervisor.watch_config" env:"SUPERVISOR_WATCH_CONFIG"`
	ParseLevels  bool   `help:"Map [level] prefixes in process output to log levels" default:"false" toml:"supervisor.parse_levels" env:"SUPERVISOR_PARSE_LEVELS"`

	// Metrics settings
	MetricsAddr string `help:"Address to serve Prometheus metrics on (empty disables)" default:"" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingJournal    bool   `help:"Also log to the systemd journal" default:"false" toml:"logging.journal" env:"LOGGING_JOURNAL"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingPool       string `help:"Process pool logging level" default:"info" toml:"logging.pool" env:"LOGGING_POOL"`
	LoggingOutput     string `help:"Process output logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingWatch      string `help:"File watcher logging level" default:"info" toml:"logging.watch" env:"LOGGING_WATCH"`
	LoggingEngine     string `help:"Execution engine logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
}

func parseDuration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func statusLine(processes int) string {
	if processes == 1 {
		return "supervising 1 process"
	}
	return fmt.Sprintf("supervising %d processes", processes)
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root(), config.EnvPrefix); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system. Module tables in [logging] extend the
		// flat per-module options.
		loggingConfig := logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Journal: opts.LoggingJournal,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"pool":       opts.LoggingPool,
				"output":     opts.LoggingOutput,
				"watch":      opts.LoggingWatch,
				"engine":     opts.LoggingEngine,
			},
		}
		maps.Copy(loggingConfig.Modules, config.LoadLoggingConfig(opts.Config).Modules)
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		supervisorOpts := supervisor.Options{
			NoShell:      opts.NoShell,
			RestartDelay: parseDuration(logger, "restart-delay", opts.RestartDelay, time.Second),
			StopTimeout:  parseDuration(logger, "stop-timeout", opts.StopTimeout, 10*time.Second),
			KillGrace:    parseDuration(logger, "kill-grace", opts.KillGrace, 5*time.Second),
			Debounce:     parseDuration(logger, "debounce", opts.Debounce, watch.DefaultDebounce),
		}
		if opts.ParseLevels {
			supervisorOpts.LogParser = process.ParseBracketLevel
		}

		var (
			sup         *supervisor.Supervisor
			configWatch *watch.Watcher
			stopMetrics func()
			stopped     = make(chan struct{})
		)

		hooks.OnStart(func() {
			// Create event bus for in-process event handling
			eventBus := events.New()
			stopMetrics = cmd.StartMetrics(opts.MetricsAddr, eventBus)
			supervisorOpts.Bus = eventBus

			specs, err := supervisor.LoadSpecs(opts.Config)
			if err != nil {
				logger.Error("Failed to load process definitions", "config", opts.Config, "error", err)
				os.Exit(1)
			}
			if len(specs) == 0 {
				logger.Warn("No processes configured", "config", opts.Config)
			}

			sup = supervisor.New(specs, supervisorOpts)
			if err := sup.Start(); err != nil {
				logger.Warn("Some processes failed to start", "error", err)
			}

			if opts.WatchConfig {
				// Watch the directory: editors replace files by renaming over them.
				configPath, _ := filepath.Abs(opts.Config)
				configWatch = watch.New([]string{filepath.Dir(configPath)},
					watch.WithDebounce(supervisorOpts.Debounce),
					watch.WithBus(eventBus))
				configWatch.OnChange(func(changed []string) {
					if !slices.Contains(changed, configPath) {
						return
					}
					specs, err := supervisor.LoadSpecs(opts.Config)
					if err != nil {
						logger.Error("Failed to reload process definitions, keeping current set", "error", err)
						return
					}
					logger.Info("Config changed, reloading processes", "count", len(specs))
					systemd.Reloading()
					sup.Reload(specs)
					systemd.Ready(statusLine(len(specs)))
				})
				if err := configWatch.Start(); err != nil {
					logger.Warn("Failed to watch config file", "config", opts.Config, "error", err)
				}
			}

			watchdogCtx, stopWatchdog := context.WithCancel(context.Background())
			defer stopWatchdog()
			go systemd.RunWatchdog(watchdogCtx)

			logger.Info("Supervisor running", "processes", len(specs))
			systemd.Ready(statusLine(len(specs)))
			<-stopped
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down supervisor")
			systemd.Stopping()
			if configWatch != nil {
				if err := configWatch.Stop(); err != nil {
					logger.Warn("Error stopping config watcher", "error", err)
				}
			}
			if sup != nil {
				now := time.Now()
				for _, info := range sup.Status() {
					logger.Info("Process status", "process", info.ID, "state", info.State,
						"uptime", info.Uptime(now).Round(time.Second), "restarts", info.RestartCount)
				}
				sup.Stop()
			}
			if stopMetrics != nil {
				stopMetrics()
			}
			close(stopped)
		})
	})

	cli.Root().Use = "procspawn"
	cli.Root().Short = "Run and supervise child processes"

	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())
	cli.Root().AddCommand(cmd.CreateQuoteCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
