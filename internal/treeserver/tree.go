package treeserver

import (
	"context"
	"sync"

	"github.com/jcousins/clueroom/internal/cloud"
)

// The Hub satisfies cloud.Tree by marshalling each call into an actor
// message and waiting on a reply channel.

func (h *Hub) Get(ctx context.Context, path string) (string, bool, error) {
	reply := make(chan getResult, 1)
	if err := h.send(ctx, getNode{path: path, reply: reply}); err != nil {
		return "", false, err
	}
	select {
	case res := <-reply:
		return res.value, res.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (h *Hub) Set(ctx context.Context, path, value string) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, setNode{path: path, value: value, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Delete(ctx context.Context, path string) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, deleteNode{path: path, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := h.Get(ctx, path)
	return ok, err
}

func (h *Hub) Watch(ctx context.Context, prefix string) (<-chan cloud.Event, cloud.CancelFunc, error) {
	out := make(chan cloud.Event, watchBuffer)
	reply := make(chan int, 1)
	if err := h.send(ctx, watchTree{prefix: prefix, out: out, reply: reply}); err != nil {
		return nil, nil, err
	}
	var id int
	select {
	case id = <-reply:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case h.inbox <- unwatch{id: id}:
			case <-h.ctx.Done():
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-h.ctx.Done():
		}
	}()
	return out, cancel, nil
}

// List snapshots every leaf under prefix. Used by the debug endpoint and
// tests.
func (h *Hub) List(ctx context.Context, prefix string) (map[string]string, error) {
	reply := make(chan map[string]string, 1)
	if err := h.send(ctx, listPrefix{prefix: prefix, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, m Msg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}
