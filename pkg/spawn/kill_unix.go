//go:build unix

package spawn

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminateGroup sends SIGTERM to every process in the group led by pid.
func terminateGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}

func killGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

func terminateProcess(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
