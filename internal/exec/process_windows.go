//go:build windows

package exec

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killProcessGroup terminates p and its descendants with taskkill, falling
// back to killing p alone.
func killProcessGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	//nolint:gosec // G204: pid is numeric
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid)).Run(); err != nil {
		return p.Kill()
	}
	return nil
}

// terminated reports whether the process may have been ended by taskkill,
// which leaves exit code 1 and no signal to inspect.
func terminated(state *os.ProcessState) bool {
	return state != nil && !state.Success()
}
