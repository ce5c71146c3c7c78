//go:build !unix && !windows

package spawn

import (
	"os"
	"os/exec"
)

func buildCommand(c *Context) *exec.Cmd {
	if c.Shell {
		sh := c.ShellPath
		if sh == "" {
			sh = DefaultShell
		}
		return exec.Command(sh, "-c", c.commandLine())
	}
	return exec.Command(c.Cmd, c.Args...)
}

func signalOf(*os.ProcessState) string {
	return ""
}
