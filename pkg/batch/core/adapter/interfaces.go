// Package adapter defines the resource abstractions shared by the database adapters.
package adapter

import "context"

// ResourceConnection represents a generic connection to a named resource.
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "sqlite").
	Type() string
	// Name returns the connection name (e.g., "gsi_staging", "ebs11i").
	Name() string
}

// ResourceConnectionResolver resolves a live resource connection by name.
type ResourceConnectionResolver interface {
	// ResolveConnection returns a valid connection, re-establishing it if necessary.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
