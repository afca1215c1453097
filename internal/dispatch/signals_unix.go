//go:build linux || darwin || freebsd || netbsd || openbsd

package dispatch

import (
	"os"

	"golang.org/x/sys/unix"
)

// defaultSignalMapping never includes the signals the privilege manager shields
// (SIGHUP and the job-control stops); subscribing to them would undo the shield.
func defaultSignalMapping() map[os.Signal]Request {
	return map[os.Signal]Request{
		unix.SIGUSR1: StartSaving,
		unix.SIGTERM: KillProcess,
		unix.SIGINT:  KillProcess,
		unix.SIGUSR2: CancelSaving,
	}
}
