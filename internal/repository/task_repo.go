package repository

import "context"

// TaskRepository persists the serialized task list as a single opaque blob.
// The whole list is the unit of persistence: reads and writes always cover
// the entire blob, there are no partial updates.
type TaskRepository interface {
	// Load returns the blob and whether one exists. A missing blob is not an
	// error.
	Load(ctx context.Context) ([]byte, bool, error)
	// Save rewrites the whole blob.
	Save(ctx context.Context, data []byte) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
