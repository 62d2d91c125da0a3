package supervisor

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/turtacn/puppetizer/pkg/logger"
)

// DetachFromTerminal drops the controlling tty. When the supervisor is a
// session leader the kernel answers TIOCNOTTY with SIGHUP and SIGCONT to the
// process group; the signal source must therefore already be installed so
// the SIGHUP is intercepted instead of taking its default disposition.
func DetachFromTerminal() {
	if err := unix.IoctlSetInt(int(os.Stdin.Fd()), unix.TIOCNOTTY, 0); err != nil {
		logger.Log.Debug("Unable to detach from controlling tty", "err", err)
		return
	}
	logger.Log.Debug("Detached from controlling tty")
}
