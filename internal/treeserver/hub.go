// Package treeserver hosts the replicated tree: a single actor owns every
// leaf, serializing all writes in receipt order, and fans change events out
// to prefix-scoped watchers. Clients reach it over HTTP and websocket.
package treeserver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jcousins/clueroom/internal/cloud"
)

const (
	inboxBuffer = 64
	watchBuffer = 32
)

type Msg interface{ isHubMsg() }

type setNode struct {
	path, value string
	reply       chan error
}

type deleteNode struct {
	path  string
	reply chan error
}

type getNode struct {
	path  string
	reply chan getResult
}

type getResult struct {
	value string
	ok    bool
}

type listPrefix struct {
	prefix string
	reply  chan map[string]string
}

type watchTree struct {
	prefix string
	out    chan cloud.Event
	reply  chan int
}

type unwatch struct{ id int }

type sweepLobbies struct {
	grace time.Duration
	reply chan []string
}

type Shutdown struct{}

func (setNode) isHubMsg()      {}
func (deleteNode) isHubMsg()   {}
func (getNode) isHubMsg()      {}
func (listPrefix) isHubMsg()   {}
func (watchTree) isHubMsg()    {}
func (unwatch) isHubMsg()      {}
func (sweepLobbies) isHubMsg() {}
func (Shutdown) isHubMsg()     {}

type hubWatcher struct {
	prefix string
	out    chan cloud.Event
}

// Hub is the tree actor. It satisfies cloud.Tree, so in-process consumers
// (handlers, the notifier, tests) use the same interface remote clients do.
type Hub struct {
	inbox    chan Msg
	nodes    map[string]string
	watchers map[int]*hubWatcher
	nextID   int
	touched  map[string]time.Time // lobby code -> last write under its subtree
	store    Store
	log      *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub loads the persisted tree from store and starts the actor loop.
func NewHub(parent context.Context, store Store, log *zap.Logger) (*Hub, error) {
	nodes, err := store.Load(parent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan Msg, inboxBuffer),
		nodes:    nodes,
		watchers: make(map[int]*hubWatcher),
		touched:  make(map[string]time.Time),
		store:    store,
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h, nil
}

// Inbox exposes the actor inbox for tests.
func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case setNode:
				h.nodes[msg.path] = msg.value
				h.touch(msg.path)
				if err := h.store.Put(h.ctx, msg.path, msg.value); err != nil {
					h.log.Warn("store put failed", zap.String("path", msg.path), zap.Error(err))
				}
				h.broadcast(cloud.Event{Path: msg.path, Value: msg.value, Exists: true})
				msg.reply <- nil

			case deleteNode:
				if _, ok := h.nodes[msg.path]; ok {
					delete(h.nodes, msg.path)
					h.touch(msg.path)
					if err := h.store.Delete(h.ctx, msg.path); err != nil {
						h.log.Warn("store delete failed", zap.String("path", msg.path), zap.Error(err))
					}
					h.broadcast(cloud.Event{Path: msg.path, Exists: false})
				}
				msg.reply <- nil

			case getNode:
				v, ok := h.nodes[msg.path]
				msg.reply <- getResult{value: v, ok: ok}

			case listPrefix:
				out := make(map[string]string)
				for path, v := range h.nodes {
					if underPrefix(path, msg.prefix) {
						out[path] = v
					}
				}
				msg.reply <- out

			case watchTree:
				id := h.nextID
				h.nextID++
				h.watchers[id] = &hubWatcher{prefix: msg.prefix, out: msg.out}
				msg.reply <- id

			case unwatch:
				if w, ok := h.watchers[msg.id]; ok {
					delete(h.watchers, msg.id)
					close(w.out)
				}

			case sweepLobbies:
				msg.reply <- h.sweep(msg.grace)

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, w := range h.watchers {
		close(w.out)
		delete(h.watchers, id)
	}
	h.cancel()
}

// broadcast fans one event out to matching watchers. A watcher whose buffer
// is full is dropped so a stalled client cannot block the actor.
func (h *Hub) broadcast(ev cloud.Event) {
	for id, w := range h.watchers {
		if !underPrefix(ev.Path, w.prefix) {
			continue
		}
		select {
		case w.out <- ev:
		default:
			h.log.Warn("dropping slow watcher", zap.String("prefix", w.prefix))
			delete(h.watchers, id)
			close(w.out)
		}
	}
}

func (h *Hub) touch(path string) {
	if code, _, ok := cloud.ParseLobbyPath(path); ok {
		h.touched[code] = h.now()
	}
}

// sweep deletes lobbies whose slots are all vacant and whose subtree has
// not been written for at least grace. Run from the actor loop so the scan
// and the deletes are atomic with respect to client writes.
func (h *Hub) sweep(grace time.Duration) []string {
	cutoff := h.now().Add(-grace)

	occupied := make(map[string]bool)
	seen := make(map[string]bool)
	for path, v := range h.nodes {
		code, rest, ok := cloud.ParseLobbyPath(path)
		if !ok {
			continue
		}
		seen[code] = true
		if strings.HasSuffix(rest, "/"+cloud.FieldUserID) && v != "" {
			occupied[code] = true
		}
	}

	var swept []string
	for code := range seen {
		if occupied[code] {
			continue
		}
		if last, ok := h.touched[code]; ok && last.After(cutoff) {
			continue
		}
		h.deletePrefix(cloud.LobbyPath(code))
		delete(h.touched, code)
		swept = append(swept, code)
	}
	return swept
}

// deletePrefix removes a subtree, emitting a delete event per leaf. Caller
// is the actor loop.
func (h *Hub) deletePrefix(prefix string) {
	for path := range h.nodes {
		if !underPrefix(path, prefix) {
			continue
		}
		delete(h.nodes, path)
		if err := h.store.Delete(h.ctx, path); err != nil {
			h.log.Warn("store delete failed", zap.String("path", path), zap.Error(err))
		}
		h.broadcast(cloud.Event{Path: path, Exists: false})
	}
}

func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
