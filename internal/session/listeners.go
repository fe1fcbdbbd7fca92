package session

import (
	"context"
	"sync"

	"github.com/jcousins/clueroom/internal/cloud"
)

// Listener registration kinds. Register/deregister calls are issued in
// matching pairs bracketing a screen's active lifetime.
const (
	ListenClues = "clues"
	ListenReady = "ready"
	ListenVotes = "votes"
)

// Listeners tracks active watch cancellations by kind.
type Listeners struct {
	mu      sync.Mutex
	cancels map[string][]cloud.CancelFunc
}

func newListeners() *Listeners {
	return &Listeners{cancels: make(map[string][]cloud.CancelFunc)}
}

func (l *Listeners) add(kind string, c cloud.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels[kind] = append(l.cancels[kind], c)
}

func (l *Listeners) drop(kind string) {
	l.mu.Lock()
	cancels := l.cancels[kind]
	delete(l.cancels, kind)
	l.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Close cancels every registration of every kind.
func (l *Listeners) Close() {
	l.mu.Lock()
	all := l.cancels
	l.cancels = make(map[string][]cloud.CancelFunc)
	l.mu.Unlock()
	for _, cancels := range all {
		for _, c := range cancels {
			c()
		}
	}
}

// registerWatches opens one watch per member path. All-or-nothing: a
// watch error cancels the ones already opened and registers nothing, so a
// caller can safely retry without doubling subscriptions.
func (s *Session) registerWatches(ctx context.Context, kind string, members []string, pathOf func(string) string, handler func(cloud.Event)) error {
	var chans []<-chan cloud.Event
	var cancels []cloud.CancelFunc
	for _, id := range members {
		ch, cancel, err := s.tree.Watch(ctx, pathOf(id))
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return err
		}
		chans = append(chans, ch)
		cancels = append(cancels, cancel)
	}
	for i, ch := range chans {
		s.listeners.add(kind, cancels[i])
		go pump(ch, handler)
	}
	return nil
}

// RegisterCluesChanged subscribes handler to every other member's item
// subtree. The member set is resolved once, now; players joining later are
// not picked up until the screen re-registers.
func (s *Session) RegisterCluesChanged(ctx context.Context, handler func(cloud.Event)) error {
	s.RefreshRoster(ctx)
	return s.registerWatches(ctx, ListenClues, s.OtherPlayers(ctx), cloud.UserItemsPath, handler)
}

// DeregisterCluesChanged cancels the clue subscriptions.
func (s *Session) DeregisterCluesChanged() {
	s.listeners.drop(ListenClues)
}

// RegisterReadyChanged subscribes handler to every member's ready flag,
// including the caller's own.
func (s *Session) RegisterReadyChanged(ctx context.Context, handler func(cloud.Event)) error {
	s.RefreshRoster(ctx)
	return s.registerWatches(ctx, ListenReady, s.Members(ctx), func(id string) string {
		return cloud.UserPath(id, cloud.FieldReady)
	}, handler)
}

// DeregisterReadyChanged cancels the ready subscriptions.
func (s *Session) DeregisterReadyChanged() {
	s.listeners.drop(ListenReady)
}

// RegisterVoteChanged subscribes handler to every member's vote field.
func (s *Session) RegisterVoteChanged(ctx context.Context, handler func(cloud.Event)) error {
	s.RefreshRoster(ctx)
	return s.registerWatches(ctx, ListenVotes, s.Members(ctx), func(id string) string {
		return cloud.UserPath(id, cloud.FieldVote)
	}, handler)
}

// DeregisterVoteChanged cancels the vote subscriptions.
func (s *Session) DeregisterVoteChanged() {
	s.listeners.drop(ListenVotes)
}

func pump(ch <-chan cloud.Event, handler func(cloud.Event)) {
	for ev := range ch {
		handler(ev)
	}
}
