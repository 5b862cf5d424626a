// Package store persists function definitions. Two backends are provided: a
// JSON file (the default) and SQLite. Both apply overwrite-by-name semantics
// and keep internal records out of bulk clears.
package store

import (
	"context"
	"errors"

	"funcsmith/internal/funcdef"
)

// ErrNotFound is returned by Get for unknown function names.
var ErrNotFound = errors.New("function not found")

// Store is the durable keyed storage for function definitions.
//
// Put fully replaces any prior record under the same name; a failed Put must
// leave the prior record intact. Concurrent Puts for the same name are
// last-writer-wins with no ordering guarantee.
type Store interface {
	Put(ctx context.Context, def funcdef.Definition) error
	Get(ctx context.Context, name string) (funcdef.Definition, error)
	List(ctx context.Context) ([]funcdef.Definition, error)
	// Clear removes every record except those marked internal.
	Clear(ctx context.Context) error
	Close() error
}
