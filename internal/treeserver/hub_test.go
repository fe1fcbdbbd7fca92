package treeserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jcousins/clueroom/internal/cloud"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := NewHub(context.Background(), NewMemStore(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { h.Inbox() <- Shutdown{} })
	return h
}

func recvEvent(t *testing.T, ch <-chan cloud.Event) cloud.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return cloud.Event{}
	}
}

func TestHubSetGetDelete(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "lobbies/ABCDE/state", "0"))

	v, ok, err := h.Get(ctx, "lobbies/ABCDE/state")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0", v)

	require.NoError(t, h.Delete(ctx, "lobbies/ABCDE/state"))
	_, ok, err = h.Get(ctx, "lobbies/ABCDE/state")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHubWatchPrefixScoping(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	events, cancel, err := h.Watch(ctx, "users/P1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, h.Set(ctx, "users/P10/ready", "true"))
	require.NoError(t, h.Set(ctx, "users/P1/ready", "true"))

	ev := recvEvent(t, events)
	require.Equal(t, "users/P1/ready", ev.Path)
	require.Equal(t, "true", ev.Value)
	require.True(t, ev.Exists)
}

func TestHubWatchDeleteEvent(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "users/P1/vote", "2"))

	events, cancel, err := h.Watch(ctx, "users/P1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, h.Delete(ctx, "users/P1/vote"))
	ev := recvEvent(t, events)
	require.Equal(t, "users/P1/vote", ev.Path)
	require.False(t, ev.Exists)
}

func TestHubSlowWatcherDropped(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	events, cancel, err := h.Watch(ctx, "users")
	require.NoError(t, err)
	defer cancel()

	// Never drain: once the buffer fills the hub must drop the watcher
	// rather than block the actor.
	for i := 0; i < watchBuffer+8; i++ {
		require.NoError(t, h.Set(ctx, "users/P1/ready", "true"))
	}

	closed := false
	deadline := time.After(time.Second)
	for !closed {
		select {
		case _, ok := <-events:
			if !ok {
				closed = true
			}
		case <-deadline:
			t.Fatal("watcher was not dropped")
		}
	}
}

func TestHubLoadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.Put(ctx, "lobbies/ABCDE/state", "1"))

	h, err := NewHub(ctx, store, zap.NewNop())
	require.NoError(t, err)
	defer func() { h.Inbox() <- Shutdown{} }()

	v, ok, err := h.Get(ctx, "lobbies/ABCDE/state")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)
}

func TestHubPersistsToStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	h, err := NewHub(ctx, store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, h.Set(ctx, "users/P1/scene", "2"))
	require.NoError(t, h.Set(ctx, "users/P1/ready", "true"))
	require.NoError(t, h.Delete(ctx, "users/P1/ready"))
	h.Inbox() <- Shutdown{}

	nodes, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"users/P1/scene": "2"}, nodes)
}

func TestSweepRemovesEmptyIdleLobby(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "lobbies/EMPTY/state", "0"))
	require.NoError(t, h.Set(ctx, "lobbies/EMPTY/users/0/user-id", ""))

	require.NoError(t, h.Set(ctx, "lobbies/BUSYQ/state", "0"))
	require.NoError(t, h.Set(ctx, "lobbies/BUSYQ/users/0/user-id", "P1"))

	sw := &Sweeper{Hub: h, Interval: time.Minute, Grace: 0, Log: zap.NewNop()}
	swept, err := sw.sweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"EMPTY"}, swept)

	_, ok, err := h.Get(ctx, "lobbies/EMPTY/state")
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err := h.Get(ctx, "lobbies/BUSYQ/users/0/user-id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "P1", v)
}

func TestSweepKeepsRecentlyTouchedLobby(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "lobbies/FRESH/state", "0"))

	sw := &Sweeper{Hub: h, Interval: time.Minute, Grace: time.Hour, Log: zap.NewNop()}
	swept, err := sw.sweepOnce(ctx)
	require.NoError(t, err)
	require.Empty(t, swept)

	_, ok, err := h.Get(ctx, "lobbies/FRESH/state")
	require.NoError(t, err)
	require.True(t, ok)
}
