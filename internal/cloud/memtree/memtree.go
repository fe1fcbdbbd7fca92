// Package memtree is an in-memory implementation of cloud.Tree. It backs the
// protocol tests and any embedder that wants a tree without a server.
package memtree

import (
	"context"
	"strings"
	"sync"

	"github.com/jcousins/clueroom/internal/cloud"
)

const watchBuffer = 32

type watcher struct {
	prefix string
	out    chan cloud.Event
}

// Tree holds leaves in a flat map. All writes take the tree lock, which
// gives the per-path receipt-order serialization the protocol assumes.
type Tree struct {
	mu       sync.Mutex
	nodes    map[string]string
	watchers map[int]*watcher
	nextID   int
}

func New() *Tree {
	return &Tree{
		nodes:    make(map[string]string),
		watchers: make(map[int]*watcher),
	}
}

func (t *Tree) Get(_ context.Context, path string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.nodes[path]
	return v, ok, nil
}

func (t *Tree) Exists(_ context.Context, path string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[path]
	return ok, nil
}

func (t *Tree) Set(_ context.Context, path, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[path] = value
	t.notify(cloud.Event{Path: path, Value: value, Exists: true})
	return nil
}

func (t *Tree) Delete(_ context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[path]; !ok {
		return nil
	}
	delete(t.nodes, path)
	t.notify(cloud.Event{Path: path, Exists: false})
	return nil
}

// DeletePrefix removes every leaf under prefix. Not part of cloud.Tree;
// used by tests and the lobby sweeper.
func (t *Tree) DeletePrefix(_ context.Context, prefix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path := range t.nodes {
		if underPrefix(path, prefix) {
			delete(t.nodes, path)
			t.notify(cloud.Event{Path: path, Exists: false})
		}
	}
	return nil
}

// List returns a copy of every leaf under prefix.
func (t *Tree) List(prefix string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string)
	for path, v := range t.nodes {
		if underPrefix(path, prefix) {
			out[path] = v
		}
	}
	return out
}

func (t *Tree) Watch(ctx context.Context, prefix string) (<-chan cloud.Event, cloud.CancelFunc, error) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	w := &watcher{prefix: prefix, out: make(chan cloud.Event, watchBuffer)}
	t.watchers[id] = w
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			if cur, ok := t.watchers[id]; ok && cur == w {
				delete(t.watchers, id)
				close(w.out)
			}
			t.mu.Unlock()
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return w.out, cancel, nil
}

// notify fans an event out to matching watchers. A watcher that cannot keep
// up is dropped rather than allowed to stall writers. Caller holds t.mu.
func (t *Tree) notify(ev cloud.Event) {
	for id, w := range t.watchers {
		if !underPrefix(ev.Path, w.prefix) {
			continue
		}
		select {
		case w.out <- ev:
		default:
			delete(t.watchers, id)
			close(w.out)
		}
	}
}

func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
