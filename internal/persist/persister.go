// Package persist provides the persist capabilities invoked by the save coordinator.
//
// A Persister is opaque to the coordinator: it is called once per save pass and
// either succeeds, fails with a transient error, or reports that the component it
// persists against is gone (ErrComponentUnloaded). The content being persisted is
// never interpreted here; implementations move bytes, they do not serialize documents.
package persist

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_persister.go -package=mocks -source=persister.go Persister

// ErrComponentUnloaded reports that the dependency a Persister writes from is no
// longer resident. The save loop stops without retrying when it sees this error.
var ErrComponentUnloaded = errors.New("component unloaded")

// Persister persists the current work of the host application
type Persister interface {
	// Persist runs one save pass. Errors wrapping ErrComponentUnloaded abort the save loop.
	Persist(ctx context.Context) error
}

// Func adapts an ordinary function to the Persister interface
type Func func(ctx context.Context) error

// Persist calls f(ctx)
func (f Func) Persist(ctx context.Context) error {
	return f(ctx)
}

// IsComponentUnloaded reports whether err marks the persisted component as gone
func IsComponentUnloaded(err error) bool {
	return errors.Is(err, ErrComponentUnloaded)
}
