// Package dispatch forwards save, kill and cancel requests from their sources
// (OS signals, the HTTP control API, an interval ticker) to the save coordinator.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-autosave/internal/coordinator"
	"github.com/stacklok/toolhive-autosave/internal/otel"
)

// Request names one of the three coordinator requests
type Request string

const (
	// StartSaving asks for a save pass
	StartSaving Request = "START_SAVING"
	// KillProcess terminates the process once the outstanding save is done
	KillProcess Request = "KILL_PROCESS"
	// CancelSaving terminates the process without waiting for the outstanding save
	CancelSaving Request = "CANCEL_SAVING"
)

// ErrUnknownRequest is returned for request names outside the three known ones
var ErrUnknownRequest = errors.New("unknown request")

// Requests lists every known request
var Requests = []Request{StartSaving, KillProcess, CancelSaving}

// ParseRequest parses a request name, ignoring case and surrounding space
func ParseRequest(name string) (Request, error) {
	req := Request(strings.ToUpper(strings.TrimSpace(name)))
	switch req {
	case StartSaving, KillProcess, CancelSaving:
		return req, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRequest, name)
	}
}

// Terminal reports whether the request ends the process
func (r Request) Terminal() bool {
	return r == KillProcess || r == CancelSaving
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithKillTimeout bounds how long a kill waits for the outstanding save. Zero waits indefinitely.
func WithKillTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.killTimeout = d
	}
}

// WithTracer sets the tracer used for dispatch spans
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.tracer = tracer
	}
}

// Dispatcher maps requests onto coordinator calls
type Dispatcher struct {
	coordinator coordinator.Coordinator
	killTimeout time.Duration
	tracer      trace.Tracer
}

// NewDispatcher creates a dispatcher for the given coordinator
func NewDispatcher(c coordinator.Coordinator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{coordinator: c}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch forwards req to the coordinator. A kill blocks for as long as the
// coordinator does; it is detached from ctx cancellation so a disconnecting
// caller does not turn into an interrupted wait.
func (d *Dispatcher) Dispatch(ctx context.Context, source string, req Request) error {
	ctx, span := otel.StartSpan(ctx, d.tracer, "dispatch.Dispatch",
		otel.RequestAttributes(string(req), source))
	defer span.End()

	slog.Info("Dispatching request", "request", req, "source", source)

	switch req {
	case StartSaving:
		d.coordinator.RequestSave()
	case KillProcess:
		killCtx := context.WithoutCancel(ctx)
		if d.killTimeout > 0 {
			var cancel context.CancelFunc
			killCtx, cancel = context.WithTimeout(killCtx, d.killTimeout)
			defer cancel()
		}
		d.coordinator.RequestKill(killCtx)
	case CancelSaving:
		d.coordinator.RequestCancel()
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownRequest, req)
		otel.RecordError(span, err)
		return err
	}

	return nil
}
