// Package wire holds the JSON messages of the tree protocol, shared by the
// server handlers and client implementations.
package wire

// Node is the REST body for reading or writing one leaf.
type Node struct {
	Path  string `json:"path,omitempty"`
	Value string `json:"value"`
}

// WatchEvent is one frame of the watch stream.
type WatchEvent struct {
	Path   string `json:"path"`
	Value  string `json:"value,omitempty"`
	Exists bool   `json:"exists"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
