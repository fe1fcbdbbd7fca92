package treeserver

import (
	"context"
	"sync"
)

// Store persists tree leaves behind the hub. The hub is the only writer,
// so implementations never see concurrent writes to the same path.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, path, value string) error
	Delete(ctx context.Context, path string) error
}

// MemStore keeps the tree in process memory. Used when no database is
// configured and in tests.
type MemStore struct {
	mu    sync.Mutex
	nodes map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{nodes: make(map[string]string)}
}

func (s *MemStore) Load(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.nodes))
	for k, v := range s.nodes {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) Put(_ context.Context, path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[path] = value
	return nil
}

func (s *MemStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, path)
	return nil
}
