//go:build windows

package spawn

import (
	"os"
	"os/exec"
	"syscall"
)

func buildCommand(c *Context) *exec.Cmd {
	attr := &syscall.SysProcAttr{HideWindow: true}
	if c.Detached {
		attr.CreationFlags = syscall.CREATE_NEW_PROCESS_GROUP
	}

	var cmd *exec.Cmd
	if c.Shell {
		sh := c.ShellPath
		if sh == "" {
			sh = os.Getenv("ComSpec")
		}
		if sh == "" {
			sh = "cmd.exe"
		}
		cmd = exec.Command(sh)
		attr.CmdLine = sh + ` /d /s /c "` + c.commandLine() + `"`
	} else {
		cmd = exec.Command(c.Cmd, c.Args...)
	}
	cmd.SysProcAttr = attr
	return cmd
}

func signalOf(*os.ProcessState) string {
	return ""
}
