//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package privilege

import "log/slog"

// NewManager creates the platform privilege manager. This platform offers no
// scheduling grant, so the options are ignored and the returned manager always denies.
func NewManager(_ ...Option) Manager {
	slog.Debug("Privileged execution not supported on this platform")
	return Disabled()
}
