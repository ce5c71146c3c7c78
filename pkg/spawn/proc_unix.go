//go:build unix

package spawn

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func buildCommand(c *Context) *exec.Cmd {
	var cmd *exec.Cmd
	if c.Shell {
		sh := c.ShellPath
		if sh == "" {
			sh = DefaultShell
		}
		cmd = exec.Command(sh, "-c", c.commandLine())
	} else {
		cmd = exec.Command(c.Cmd, c.Args...)
	}
	// A detached child leads its own process group so the whole tree can be
	// signalled through -pid.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: c.Detached}
	return cmd
}

func signalOf(state *os.ProcessState) string {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return unix.SignalName(ws.Signal())
}
