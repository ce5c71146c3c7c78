//go:build !unix

package spawn

import (
	"errors"
	"os"
)

func terminateGroup(int) error {
	return errors.ErrUnsupported
}

func killGroup(int) error {
	return errors.ErrUnsupported
}

// terminateProcess kills p outright; there is no portable SIGTERM here.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
