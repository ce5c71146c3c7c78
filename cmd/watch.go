package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/procspawn/internal/config"
	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/internal/process"
	"github.com/smazurov/procspawn/internal/supervisor"
	"github.com/smazurov/procspawn/pkg/shell"
	"github.com/spf13/cobra"
)

// WatchOptions are the settings of the watch command.
type WatchOptions struct {
	Config string

	Paths       []string      `toml:"watch.paths" env:"WATCH_PATHS"`
	Debounce    time.Duration `toml:"watch.debounce" env:"WATCH_DEBOUNCE"`
	Restart     string        `toml:"watch.restart" env:"WATCH_RESTART"`
	NoShell     bool          `toml:"watch.no_shell" env:"WATCH_NO_SHELL"`
	KillGrace   time.Duration `toml:"watch.kill_grace" env:"WATCH_KILL_GRACE"`
	ParseLevels bool          `toml:"watch.parse_levels" env:"WATCH_PARSE_LEVELS"`
	MetricsAddr string        `toml:"metrics.addr" env:"METRICS_ADDR"`
}

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch --path PATH [flags] -- command [args...]",
		Short: "Run a command and restart it when files change",
		Long: `Runs one command under supervision and restarts it whenever a watched file or directory ` +
			`changes. The command's output is logged line by line. Stops on SIGINT or SIGTERM.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logger := logging.GetLogger("watch")

			opts.Config, _ = cmd.Flags().GetString("config")
			if err := config.LoadConfig(opts, cmd, config.EnvPrefix); err != nil {
				logger.Error("Failed to load config", "error", err)
				os.Exit(2)
			}

			spec := supervisor.Spec{
				Command: commandLine(args, opts.NoShell),
				Watch:   opts.Paths,
				Restart: supervisor.RestartPolicy(opts.Restart),
			}
			if err := spec.Validate(); err != nil {
				logger.Error("Invalid command", "error", err)
				os.Exit(2)
			}
			if len(spec.Watch) == 0 {
				logger.Warn("No paths to watch, the command will not be restarted on change")
			}

			bus := events.New()
			stopMetrics := StartMetrics(opts.MetricsAddr, bus)
			defer stopMetrics()

			var parser process.LogParser
			if opts.ParseLevels {
				parser = process.ParseBracketLevel
			}

			name := processName(args[0])
			sup := supervisor.New(map[string]supervisor.Spec{name: spec}, supervisor.Options{
				Bus:       bus,
				Debounce:  opts.Debounce,
				NoShell:   opts.NoShell,
				KillGrace: opts.KillGrace,
				LogParser: parser,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sup.Start(); err != nil {
				logger.Error("Failed to start command", "error", err)
			}
			<-ctx.Done()

			logger.Info("Shutting down")
			sup.Stop()
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Paths, "path", "p", nil, "File or directory to watch (repeatable)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 300*time.Millisecond, "Quiet period before restarting")
	cmd.Flags().StringVar(&opts.Restart, "restart", string(supervisor.RestartNever),
		"Restart policy when the command exits on its own (never, on-failure, always)")
	cmd.Flags().BoolVar(&opts.NoShell, "no-shell", false, "Execute the command directly instead of through the shell")
	cmd.Flags().DurationVar(&opts.KillGrace, "kill-grace", 5*time.Second, "Delay between SIGTERM and SIGKILL on restart")
	cmd.Flags().BoolVar(&opts.ParseLevels, "parse-levels", false, "Parse [level] prefixes in the command's output")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// commandLine joins args into the single command line the pool expects.
// Shell mode keeps the first argument as written and quotes the rest.
func commandLine(args []string, noShell bool) string {
	if len(args) == 1 {
		return args[0]
	}
	if noShell {
		return shell.Build(argvQuote, []string{""}, args)
	}
	return shell.Build(nil, []string{args[0] + " "}, args[1:])
}

var argvEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// argvQuote quotes for the pool's own argument splitter, which understands
// double quotes and backslashes but not ANSI-C strings.
func argvQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	return `"` + argvEscaper.Replace(s) + `"`
}

func processName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "command"
	}
	name := fields[0]
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
