//go:build unix

package toolchain

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so a cancelled
// build can kill compilers together with anything they spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
