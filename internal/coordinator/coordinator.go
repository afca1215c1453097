package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-autosave/internal/otel"
	"github.com/stacklok/toolhive-autosave/internal/persist"
	"github.com/stacklok/toolhive-autosave/internal/privilege"
	"github.com/stacklok/toolhive-autosave/internal/process"
	"github.com/stacklok/toolhive-autosave/internal/status"
	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks -source=coordinator.go Coordinator

const (
	// DefaultName is the instance name used when none is configured
	DefaultName = "default"

	// statusWriteTimeout bounds a single status file write
	statusWriteTimeout = 5 * time.Second
)

// State is the externally observable state of the coordinator
type State string

const (
	// StateIdle means no worker is running
	StateIdle State = "Idle"
	// StateSaving means a worker is running save passes
	StateSaving State = "Saving"
	// StateTerminating means a kill or cancel was requested; no new save will start
	StateTerminating State = "Terminating"
)

// Coordinator serializes save passes and gates process termination on them
type Coordinator interface {
	// RequestSave starts a worker, or schedules one more pass on the running one.
	// It never blocks and is ignored once termination was requested.
	RequestSave()

	// RequestKill terminates the process once the outstanding save finishes.
	// It returns immediately while a privilege grant is held, otherwise it blocks
	// until the worker is gone or ctx ends.
	RequestKill(ctx context.Context)

	// RequestCancel terminates the process without waiting for a pass in progress
	RequestCancel()

	// WaitForIdle blocks until no worker is running. It returns ctx.Err() when interrupted.
	WaitForIdle(ctx context.Context) error

	// State returns the current coordinator state
	State() State

	// GetStatus returns a copy of the current save status
	GetStatus() *status.SaveStatus
}

// worker is the handle of one running save loop
type worker struct {
	id   string
	done chan struct{}
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	persister  persist.Persister
	terminator process.Terminator
	privileges privilege.Manager

	// mu guards every field below it up to statusMu
	mu             sync.Mutex
	worker         *worker
	saveAgain      bool
	killRequested  bool
	privileged     bool
	watcherStarted bool

	terminateOnce sync.Once

	statusMu sync.RWMutex
	status   *status.SaveStatus

	name              string
	statusPersistence status.StatusPersistence
	saveMetrics       *telemetry.SaveMetrics
	tracer            trace.Tracer
	passTimeout       time.Duration
	run               Runner
}

// New creates a new coordinator with injected collaborators
func New(
	persister persist.Persister,
	terminator process.Terminator,
	privileges privilege.Manager,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		persister:  persister,
		terminator: terminator,
		privileges: privileges,
		status:     &status.SaveStatus{},
		name:       DefaultName,
		run:        func(task func()) { go task() },
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.privileges == nil {
		c.privileges = privilege.Disabled()
	}

	return c
}

// RequestSave starts a worker or coalesces into the running one
func (c *defaultCoordinator) RequestSave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killRequested {
		slog.Debug("Ignoring save request, process is terminating", "instance", c.name)
		return
	}

	if c.worker != nil {
		c.saveAgain = true
		c.withStatus(func(s *status.SaveStatus) {
			s.CoalescedCount++
		})
		c.saveMetrics.RecordCoalescedRequest(context.Background(), c.name)
		slog.Debug("Save already running, scheduling one more pass",
			"instance", c.name,
			"worker_id", c.worker.id)
		return
	}

	c.privileged = c.privileges.TryAcquire()
	c.saveMetrics.RecordPrivilegeAttempt(context.Background(), c.name, c.privileged)
	if !c.privileged {
		slog.Debug("Privileged execution denied, saving unprivileged", "instance", c.name)
	}

	w := &worker{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	c.worker = w

	slog.Info("Starting save worker",
		"instance", c.name,
		"worker_id", w.id,
		"privileged", c.privileged)

	c.run(func() { c.saveLoop(w) })
}

// saveLoop runs passes until nothing is pending, a kill was requested, or the component is gone
func (c *defaultCoordinator) saveLoop(w *worker) {
	defer close(w.done)

	for pass := 1; ; pass++ {
		c.mu.Lock()
		c.saveAgain = false
		privileged := c.privileged
		c.mu.Unlock()

		err := c.savePass(w, pass, privileged)

		c.mu.Lock()
		if c.saveAgain && !c.killRequested && !persist.IsComponentUnloaded(err) {
			c.mu.Unlock()
			continue
		}

		if c.privileged {
			c.privileges.Release()
			c.privileged = false
		}
		c.saveAgain = false
		c.worker = nil
		c.mu.Unlock()

		slog.Info("Save worker finished", "instance", c.name, "worker_id", w.id, "passes", pass)
		return
	}
}

// savePass performs one persist call and records its outcome
func (c *defaultCoordinator) savePass(w *worker, pass int, privileged bool) error {
	passID := uuid.NewString()

	ctx := context.Background()
	if c.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.passTimeout)
		defer cancel()
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.savePass",
		otel.PassAttributes(c.name, passID, pass, privileged))
	defer span.End()

	startTime := time.Now()
	c.updateStatus(ctx, func(s *status.SaveStatus) {
		s.Phase = status.SavePhaseSaving
		s.Message = fmt.Sprintf("Save pass %d in progress", pass)
		s.LastPassID = passID
		s.LastAttempt = &startTime
		s.Privileged = privileged
	})

	slog.Info("Starting save pass",
		"instance", c.name,
		"worker_id", w.id,
		"pass_id", passID,
		"pass", pass,
		"privileged", privileged)

	err := c.persister.Persist(ctx)
	duration := time.Since(startTime)

	var outcome string
	switch {
	case err == nil:
		outcome = telemetry.OutcomeComplete
		endTime := time.Now()
		c.updateStatus(ctx, func(s *status.SaveStatus) {
			s.Phase = status.SavePhaseComplete
			s.Message = "Save completed successfully"
			s.LastSaveTime = &endTime
			s.PassCount++
			s.FailureCount = 0
		})
		slog.Info("Save pass completed",
			"instance", c.name,
			"pass_id", passID,
			"duration", duration.String())

	case persist.IsComponentUnloaded(err):
		outcome = telemetry.OutcomeAborted
		otel.RecordAbort(span, err)
		c.updateStatus(ctx, func(s *status.SaveStatus) {
			s.Phase = status.SavePhaseAborted
			s.Message = fmt.Sprintf("Save aborted: %v", err)
			s.PassCount++
		})
		slog.Warn("Persisted component unloaded, stopping save loop",
			"instance", c.name,
			"pass_id", passID,
			"error", err)

	default:
		outcome = telemetry.OutcomeFailed
		otel.RecordError(span, err)
		c.updateStatus(ctx, func(s *status.SaveStatus) {
			s.Phase = status.SavePhaseFailed
			s.Message = fmt.Sprintf("Save failed: %v", err)
			s.PassCount++
			s.FailureCount++
		})
		slog.Error("Save pass failed",
			"instance", c.name,
			"pass_id", passID,
			"duration", duration.String(),
			"error", err)
	}

	otel.SetOutcome(span, outcome)
	c.saveMetrics.RecordPass(ctx, c.name, duration, outcome)

	return err
}

// RequestKill marks the coordinator as terminating and terminates once no save is in flight
func (c *defaultCoordinator) RequestKill(ctx context.Context) {
	c.mu.Lock()
	c.killRequested = true
	privileged := c.privileged
	startWatcher := privileged && !c.watcherStarted
	if startWatcher {
		c.watcherStarted = true
	}
	c.mu.Unlock()

	if privileged {
		if startWatcher {
			slog.Info("Kill requested while privileged, terminating after the running save",
				"instance", c.name)
			c.run(func() { c.awaitAndTerminate(context.Background()) })
		}
		return
	}

	slog.Info("Kill requested, waiting for outstanding save", "instance", c.name)
	c.awaitAndTerminate(ctx)
}

// RequestCancel terminates right away; a pass in progress is abandoned
func (c *defaultCoordinator) RequestCancel() {
	c.mu.Lock()
	c.killRequested = true
	saving := c.worker != nil
	c.mu.Unlock()

	slog.Warn("Cancel requested, terminating without waiting for outstanding save",
		"instance", c.name,
		"save_in_progress", saving)
	c.terminate()
}

// WaitForIdle joins the running worker, following any worker started while waiting
func (c *defaultCoordinator) WaitForIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		w := c.worker
		c.mu.Unlock()

		if w == nil {
			return nil
		}

		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// State returns the current coordinator state
func (c *defaultCoordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.killRequested:
		return StateTerminating
	case c.worker != nil:
		return StateSaving
	default:
		return StateIdle
	}
}

// GetStatus returns a copy of the current save status
func (c *defaultCoordinator) GetStatus() *status.SaveStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status.Clone()
}

func (c *defaultCoordinator) awaitAndTerminate(ctx context.Context) {
	if err := c.WaitForIdle(ctx); err != nil {
		slog.Warn("Wait for outstanding save interrupted, terminating anyway",
			"instance", c.name,
			"error", err)
	}
	c.terminate()
}

func (c *defaultCoordinator) terminate() {
	c.terminateOnce.Do(c.terminator.Terminate)
}

// withStatus applies fn to the in-memory status and returns a snapshot of the result
func (c *defaultCoordinator) withStatus(fn func(*status.SaveStatus)) *status.SaveStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	fn(c.status)
	return c.status.Clone()
}

// updateStatus applies fn and persists the resulting snapshot. Only the worker calls it.
func (c *defaultCoordinator) updateStatus(ctx context.Context, fn func(*status.SaveStatus)) {
	snapshot := c.withStatus(fn)
	if c.statusPersistence == nil {
		return
	}

	// The pass context may already be past its deadline; status writes get their own
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if err := c.statusPersistence.SaveStatus(writeCtx, c.name, snapshot); err != nil {
		slog.Error("Failed to persist save status",
			"instance", c.name,
			"phase", snapshot.Phase,
			"error", err)
	}
}
