//go:build linux || darwin || freebsd || netbsd || openbsd

package privilege

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	psprocess "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// shieldedSignals are ignored while a grant with signal shielding is held
var shieldedSignals = []os.Signal{unix.SIGHUP, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU}

// niceManager grants privileges by lowering the niceness of every thread of the process
type niceManager struct {
	settings

	mu       sync.Mutex
	held     bool
	changed  bool
	previous int

	currentNice   func() (int, error)
	setNice       func(n int) error
	ignoreSignals func(sig ...os.Signal)
	resetSignals  func(sig ...os.Signal)
}

// NewManager creates the platform privilege manager
func NewManager(opts ...Option) Manager {
	return newNiceManager(newSettings(opts...))
}

func newNiceManager(s settings) *niceManager {
	return &niceManager{
		settings:      s,
		currentNice:   readProcessNice,
		setNice:       setProcessNice,
		ignoreSignals: signal.Ignore,
		resetSignals:  signal.Reset,
	}
}

// TryAcquire lowers the process niceness to the configured value
func (m *niceManager) TryAcquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held {
		slog.Warn("Privilege grant requested while one is already held")
		return true
	}

	previous, err := m.currentNice()
	if err != nil {
		slog.Debug("Unable to read process niceness, continuing unprivileged", "error", err)
		return false
	}

	m.changed = false
	if previous > m.niceness {
		if err := m.setNice(m.niceness); err != nil {
			slog.Debug("Privilege grant denied",
				"niceness", m.niceness,
				"error", err)
			// Some threads may already have moved
			if rollbackErr := m.setNice(previous); rollbackErr != nil {
				slog.Warn("Failed to restore niceness after denied grant", "error", rollbackErr)
			}
			return false
		}
		m.changed = true
	}

	if m.shieldSignals {
		m.ignoreSignals(shieldedSignals...)
	}

	m.previous = previous
	m.held = true
	slog.Debug("Privilege grant acquired",
		"previous_niceness", previous,
		"niceness", min(previous, m.niceness))

	return true
}

// Release restores the niceness observed before the grant
func (m *niceManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.held {
		return
	}

	if m.changed {
		if err := m.setNice(m.previous); err != nil {
			slog.Warn("Failed to restore process niceness", "niceness", m.previous, "error", err)
		}
	}

	if m.shieldSignals {
		m.resetSignals(shieldedSignals...)
	}

	m.held = false
	m.changed = false
	slog.Debug("Privilege grant released")
}

func currentProcess() (*psprocess.Process, error) {
	//nolint:gosec // G115: pids fit in int32 on all supported platforms
	return psprocess.NewProcess(int32(os.Getpid()))
}

// readProcessNice returns the niceness of the current process
func readProcessNice() (int, error) {
	p, err := currentProcess()
	if err != nil {
		return 0, fmt.Errorf("failed to inspect current process: %w", err)
	}

	nice, err := p.Nice()
	if err != nil {
		return 0, fmt.Errorf("failed to read niceness: %w", err)
	}

	return int(nice), nil
}

// setProcessNice applies n to every thread of the process. On Linux niceness is
// per thread, so each task is updated; elsewhere the process-wide call is used.
func setProcessNice(n int) error {
	p, err := currentProcess()
	if err != nil {
		return fmt.Errorf("failed to inspect current process: %w", err)
	}

	threads, err := p.Threads()
	if err != nil || len(threads) == 0 {
		return unix.Setpriority(unix.PRIO_PROCESS, 0, n)
	}

	for tid := range threads {
		if err := unix.Setpriority(unix.PRIO_PROCESS, int(tid), n); err != nil {
			if errors.Is(err, unix.ESRCH) {
				// thread exited since listing
				continue
			}
			return fmt.Errorf("failed to set niceness of thread %d: %w", tid, err)
		}
	}

	return nil
}
