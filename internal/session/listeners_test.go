package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jcousins/clueroom/internal/cloud"
	"github.com/jcousins/clueroom/internal/cloud/memtree"
)

// failingWatchTree delegates to memtree but fails every Watch after the
// first, recording how many of the earlier cancels ran.
type failingWatchTree struct {
	*memtree.Tree
	calls     int
	cancelled int
}

func (f *failingWatchTree) Watch(ctx context.Context, prefix string) (<-chan cloud.Event, cloud.CancelFunc, error) {
	f.calls++
	if f.calls > 1 {
		return nil, nil, errors.New("watch failed")
	}
	ch, cancel, err := f.Tree.Watch(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}
	wrapped := func() {
		f.cancelled++
		cancel()
	}
	return ch, wrapped, nil
}

func TestRegisterCluesChanged_WatchErrorCancelsPartialSet(t *testing.T) {
	mem := memtree.New()
	seedLobby(t, mem, "ABCDE", "P1", "P2", "P3")
	tree := &failingWatchTree{Tree: mem}
	s := New(tree, "P1", WithRand(rand.New(rand.NewSource(42))))
	ctx := context.Background()

	if !s.Join(ctx, "ABCDE") {
		t.Fatalf("join failed")
	}

	got := make(chan struct{}, 8)
	err := s.RegisterCluesChanged(ctx, func(cloud.Event) { got <- struct{}{} })
	if err == nil {
		t.Fatalf("want error from failing watch")
	}
	if tree.cancelled != 1 {
		t.Fatalf("first watch must be cancelled on the second's failure, cancelled=%d", tree.cancelled)
	}

	// Nothing was registered: the surviving member's uploads reach no one.
	p2 := newTestSession(mem, "P2")
	if !p2.Join(ctx, "ABCDE") {
		t.Fatalf("P2 join failed")
	}
	p2.UploadItem(ctx, 1, Clue{Name: "Key"})
	noSignal(t, got, 100*time.Millisecond, "event after failed registration")
}

func TestRefreshRosterConcurrentWithClueEvents(t *testing.T) {
	tree := memtree.New()
	ctx := context.Background()

	p1 := newTestSession(tree, "P1")
	code, ok := p1.CreateLobby(ctx)
	if !ok {
		t.Fatalf("create failed")
	}
	p2 := newTestSession(tree, "P2")
	if !p2.Join(ctx, code) {
		t.Fatalf("P2 join failed")
	}

	engine := p1.ClueEngine()
	if err := p1.RegisterCluesChanged(ctx, engine.Apply); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer p1.DeregisterCluesChanged()

	// Event handlers resolve player numbers from the roster snapshot while
	// re-registrations rewrite it; both sides must be safe concurrently.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			p2.UploadItem(ctx, i%DefaultItemSlots+1, Clue{Name: "Key"})
		}
	}()
	for i := 0; i < 50; i++ {
		p1.RefreshRoster(ctx)
	}
	<-done
}
