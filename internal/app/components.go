package app

import (
	"github.com/stacklok/toolhive-autosave/internal/coordinator"
	"github.com/stacklok/toolhive-autosave/internal/dispatch"
	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator serializes save passes and gates termination
	Coordinator coordinator.Coordinator

	// Dispatcher routes requests from all sources to the coordinator
	Dispatcher *dispatch.Dispatcher

	// Telemetry holds the tracing and metrics providers (optional)
	Telemetry *telemetry.Telemetry
}
