// Package cloud defines the replicated, path-addressed key-value tree the
// lobby protocol runs against, along with the path grammar shared by every
// component that reads or writes it.
package cloud

import "context"

// Event describes a single change to one leaf of the tree. Exists reports
// whether the leaf still holds a value after the change; false means it was
// deleted or never existed.
type Event struct {
	Path   string
	Value  string
	Exists bool
}

// CancelFunc detaches a watcher registered with Watch. Safe to call more
// than once.
type CancelFunc func()

// Tree is the remote tree primitive. Writes to the same path are serialized
// by the tree in receipt order; writes to different paths carry no ordering
// guarantee relative to each other. Implementations close the event channel
// returned by Watch when the watcher is cancelled or the stream ends.
type Tree interface {
	Get(ctx context.Context, path string) (string, bool, error)
	Set(ctx context.Context, path, value string) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Watch(ctx context.Context, prefix string) (<-chan Event, CancelFunc, error)
}
