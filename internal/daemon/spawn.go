package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// DetachedCommand builds the self-exec command for a background primary
// instance: `<exe> run --config <dir>`.
func DetachedCommand(executable, configDir string, extraArgs ...string) *exec.Cmd {
	args := append([]string{"run", "--config", configDir}, extraArgs...)
	cmd := exec.Command(executable, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}

// StartDetached spawns a detached primary instance from the current
// executable and returns its PID.
func StartDetached(configDir string, extraArgs ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	cmd := DetachedCommand(executable, configDir, extraArgs...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Not waited on; the child outlives us
	_ = cmd.Process.Release()
	return pid, nil
}
