// Package privilege requests an elevated execution class for the hosting process.
//
// A grant keeps the process running and scheduled while it is backgrounded. Every
// request is best effort: a denied grant is a normal outcome and callers simply
// continue unprivileged.
package privilege

import "log/slog"

//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks -source=privilege.go Manager

const (
	// DefaultNiceness is the niceness applied while a grant is held
	DefaultNiceness = -5
)

// Manager hands out at most one privilege grant at a time
type Manager interface {
	// TryAcquire attempts to obtain the grant. It reports whether the grant is held.
	TryAcquire() bool

	// Release gives the grant back. It is a no-op when no grant is held.
	Release()
}

// settings holds the configurable behaviour shared by all platform managers
type settings struct {
	niceness      int
	shieldSignals bool
}

// Option configures a Manager
type Option func(*settings)

// WithNiceness sets the niceness requested while the grant is held
func WithNiceness(n int) Option {
	return func(s *settings) {
		s.niceness = n
	}
}

// WithSignalShield makes the grant also ignore hangup and job-control stop signals
func WithSignalShield(enabled bool) Option {
	return func(s *settings) {
		s.shieldSignals = enabled
	}
}

func newSettings(opts ...Option) settings {
	s := settings{niceness: DefaultNiceness}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// disabledManager never grants privileges
type disabledManager struct{}

// Disabled returns a Manager whose grants are always denied
func Disabled() Manager {
	return disabledManager{}
}

func (disabledManager) TryAcquire() bool {
	slog.Debug("Privilege manager disabled, continuing unprivileged")
	return false
}

func (disabledManager) Release() {}
