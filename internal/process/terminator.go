// Package process provides the irreversible process-exit primitive used once no save is in flight.
package process

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/mock_terminator.go -package=mocks -source=terminator.go Terminator

const (
	// defaultHookTimeout bounds the time shutdown hooks may take before exit
	defaultHookTimeout = 5 * time.Second
)

// Terminator ends the hosting process
type Terminator interface {
	// Terminate exits the process. Production implementations do not return.
	Terminate()
}

// ShutdownHook flushes a resource before the process exits
type ShutdownHook func(ctx context.Context) error

// Option configures an exit terminator
type Option func(*exitTerminator)

// WithShutdownHook registers a hook that runs before exit, in registration order
func WithShutdownHook(name string, hook ShutdownHook) Option {
	return func(t *exitTerminator) {
		t.hooks = append(t.hooks, namedHook{name: name, hook: hook})
	}
}

// WithHookTimeout bounds the combined runtime of all shutdown hooks
func WithHookTimeout(d time.Duration) Option {
	return func(t *exitTerminator) {
		t.hookTimeout = d
	}
}

// WithExitFunc replaces os.Exit (tests only)
func WithExitFunc(exit func(code int)) Option {
	return func(t *exitTerminator) {
		t.exit = exit
	}
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// exitTerminator runs shutdown hooks and exits with status 0, so a deliberate
// termination is not reported as a crash by the host.
type exitTerminator struct {
	hooks       []namedHook
	hookTimeout time.Duration
	exit        func(code int)
	once        sync.Once
}

// NewExitTerminator creates a Terminator that exits the current process
func NewExitTerminator(opts ...Option) Terminator {
	t := &exitTerminator{
		hookTimeout: defaultHookTimeout,
		exit:        os.Exit,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Terminate runs the shutdown hooks once and exits
func (t *exitTerminator) Terminate() {
	t.once.Do(func() {
		slog.Info("Terminating process")

		ctx, cancel := context.WithTimeout(context.Background(), t.hookTimeout)
		for _, h := range t.hooks {
			if err := h.hook(ctx); err != nil {
				slog.Warn("Shutdown hook failed", "hook", h.name, "error", err)
			}
		}
		cancel()

		t.exit(0)
	})
}
