//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so cancellation
// also reaches anything it spawned (container engines fork helpers).
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
