package spawn

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	errs "github.com/turtacn/puppetizer/pkg/errors"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Start launches command with extra args appended and returns the child's
// PID. Stdout and stderr are inherited. The caller must never wait on the
// returned PID directly: the supervisor reaps every child centrally through
// its signal source.
func Start(command []string, args ...string) (int, error) {
	if len(command) == 0 {
		return 0, errs.New(errs.ErrCodeSpawnFailed, "Spawn", "empty command", nil)
	}

	argv := append(append([]string{}, command[1:]...), args...)
	cmd := exec.Command(command[0], argv...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Log.Debug("Spawning process", "cmd", command[0], "args", argv)
	if err := cmd.Start(); err != nil {
		return 0, errs.New(errs.ErrCodeSpawnFailed, "Spawn", "failed to start "+command[0], err)
	}

	pid := cmd.Process.Pid
	// Detach the exec.Cmd bookkeeping; reaping happens via wait4 elsewhere.
	_ = cmd.Process.Release()
	return pid, nil
}

// System is the real process backend handed to the service registry.
type System struct{}

// Start runs a service script asynchronously.
func (System) Start(path string, args ...string) (int, error) {
	return Start([]string{path}, args...)
}

// Signal delivers sig to pid. Used as the stop fallback when a service has
// no stop hook.
func (System) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// ExitCode converts a wait status into the child's exit code. Children
// killed by a signal map to 128+signum, following shell convention.
func ExitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	}
	return -1
}
