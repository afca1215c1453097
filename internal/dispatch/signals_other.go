//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package dispatch

import "os"

func defaultSignalMapping() map[os.Signal]Request {
	return map[os.Signal]Request{
		os.Interrupt: KillProcess,
	}
}
