package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/procspawn/internal/config"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/pkg/shell"
	"github.com/smazurov/procspawn/pkg/spawn"
	"github.com/spf13/cobra"
)

// RunOptions are the settings of the run command.
type RunOptions struct {
	Config string

	Sync      bool          `toml:"run.sync" env:"RUN_SYNC"`
	NoShell   bool          `toml:"run.no_shell" env:"RUN_NO_SHELL"`
	Timeout   time.Duration `toml:"run.timeout" env:"RUN_TIMEOUT"`
	KillGrace time.Duration `toml:"run.kill_grace" env:"RUN_KILL_GRACE"`
	Cwd       string        `toml:"run.cwd" env:"RUN_CWD"`
	Env       []string      `toml:"run.env" env:"RUN_ENV"`
}

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a single command and exit with its status",
		Long: `Runs one command, relaying its stdin, stdout and stderr. With the shell enabled the first ` +
			`argument is a shell command line and the remaining arguments are quoted and appended. ` +
			`Exits with the child's status, or 128 plus the signal number when it was killed.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.Config, _ = cmd.Flags().GetString("config")
			if err := config.LoadConfig(opts, cmd, config.EnvPrefix); err != nil {
				logging.GetLogger("run").Error("Failed to load config", "error", err)
				os.Exit(2)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			os.Exit(runCommand(ctx, opts, args, os.Stdin, os.Stdout, os.Stderr))
		},
	}

	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "Wait for the command to exit before relaying its output")
	cmd.Flags().BoolVar(&opts.NoShell, "no-shell", false, "Execute the command directly instead of through the shell")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Abort the command after this long (0 disables)")
	cmd.Flags().DurationVar(&opts.KillGrace, "kill-grace", 5*time.Second, "Delay between SIGTERM and SIGKILL on abort")
	cmd.Flags().StringVar(&opts.Cwd, "cwd", "", "Working directory of the command")
	cmd.Flags().StringSliceVar(&opts.Env, "env", nil, "Extra environment variables as KEY=VALUE")

	return cmd
}

// runCommand executes args and returns the exit status for the procspawn process.
func runCommand(ctx context.Context, opts *RunOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := logging.GetLogger("run")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.Timeout, fmt.Errorf("timeout after %s", opts.Timeout))
		defer cancel()
	}

	spawnOpts := []spawn.Option{
		spawn.WithShell(!opts.NoShell),
		spawn.WithSync(opts.Sync),
		spawn.WithSignal(ctx),
		spawn.WithStdin(stdin),
		spawn.WithStdout(stdout),
		spawn.WithStderr(stderr),
		spawn.WithKillGrace(opts.KillGrace),
		spawn.WithLogger(logging.GetLogger("engine")),
	}
	if opts.NoShell {
		spawnOpts = append(spawnOpts, spawn.WithCmd(args[0], args[1:]...))
	} else {
		line := args[0]
		if len(args) > 1 {
			line = shell.Build(nil, []string{args[0] + " "}, args[1:])
		}
		spawnOpts = append(spawnOpts, spawn.WithShellPath(shell.Interpreter()), spawn.WithCmd(line))
	}
	if opts.Cwd != "" {
		spawnOpts = append(spawnOpts, spawn.WithCwd(opts.Cwd))
	}
	for _, kv := range opts.Env {
		key, value, ok := splitEnv(kv)
		if !ok {
			logger.Error("Invalid environment variable, expected KEY=VALUE", "env", kv)
			return 2
		}
		spawnOpts = append(spawnOpts, spawn.WithEnvVar(key, value))
	}

	spawnOpts = append(spawnOpts, spawn.WithListener(spawn.KindAbort, func(ev spawn.Event) {
		if abort, ok := ev.(spawn.AbortEvent); ok {
			logger.Warn("Command aborted", "cause", abort.Cause)
		}
	}))

	res := spawn.Run(spawnOpts...).Wait()
	return exitCode(res)
}

// exitCode maps a result to a process exit status the way shells do.
func exitCode(res *spawn.Result) int {
	switch {
	case res.Signal != "":
		return 128 + signalNumber(res.Signal)
	case res.Status != nil:
		return *res.Status
	case errors.Is(res.Err, spawn.ErrAborted):
		return 130
	case res.Err != nil:
		return 127
	default:
		return 1
	}
}

func splitEnv(kv string) (key, value string, ok bool) {
	key, value, found := strings.Cut(kv, "=")
	if !found {
		return "", "", false
	}
	return key, value, key != ""
}
