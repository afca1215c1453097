package dispatch

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// SignalSource turns OS signals into requests
type SignalSource struct {
	dispatcher *Dispatcher
	mapping    map[os.Signal]Request

	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
}

// NewSignalSource creates a signal source with the platform signal mapping
func NewSignalSource(d *Dispatcher) *SignalSource {
	return &SignalSource{
		dispatcher: d,
		mapping:    defaultSignalMapping(),
		notify:     signal.Notify,
		stop:       signal.Stop,
	}
}

// Run forwards signals until ctx ends. Terminal requests are dispatched on
// their own goroutine so a later signal, such as a cancel, is still handled
// while a kill waits for the outstanding save.
func (s *SignalSource) Run(ctx context.Context) error {
	signals := make([]os.Signal, 0, len(s.mapping))
	for sig := range s.mapping {
		signals = append(signals, sig)
	}

	ch := make(chan os.Signal, len(signals))
	s.notify(ch, signals...)
	defer s.stop(ch)

	slog.Info("Listening for request signals", "signals", len(signals))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			req, ok := s.mapping[sig]
			if !ok {
				continue
			}

			slog.Info("Received signal", "signal", sig.String(), "request", req)
			if req.Terminal() {
				go s.dispatch(ctx, req)
				continue
			}
			s.dispatch(ctx, req)
		}
	}
}

func (s *SignalSource) dispatch(ctx context.Context, req Request) {
	if err := s.dispatcher.Dispatch(ctx, "signal", req); err != nil {
		slog.Error("Failed to dispatch signal request", "request", req, "error", err)
	}
}
