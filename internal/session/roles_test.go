package session

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/jcousins/clueroom/internal/cloud"
	"github.com/jcousins/clueroom/internal/cloud/memtree"
)

func TestAssignScenes_WritesPermutation(t *testing.T) {
	tree := memtree.New()
	seedLobby(t, tree, "ABCDE", "P1", "P2", "P3")
	ctx := context.Background()

	s := newTestSession(tree, "P1")
	if !s.Join(ctx, "ABCDE") {
		t.Fatalf("join failed")
	}

	own := s.AssignScenes(ctx)
	if own < 1 || own > 3 {
		t.Fatalf("own scene out of range: %d", own)
	}

	var scenes []int
	for _, id := range []string{"P1", "P2", "P3"} {
		v, ok, _ := tree.Get(ctx, cloud.UserPath(id, cloud.FieldScene))
		if !ok {
			t.Fatalf("scene missing for %s", id)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("scene for %s not numeric: %q", id, v)
		}
		if id == "P1" && n != own {
			t.Fatalf("persisted own scene %d disagrees with returned %d", n, own)
		}
		scenes = append(scenes, n)
	}

	sort.Ints(scenes)
	for i, n := range scenes {
		if n != i+1 {
			t.Fatalf("scenes are not a permutation of 1..3: %v", scenes)
		}
	}

	// Lobby slot mirror carries the same values.
	for i, id := range []string{"P1", "P2", "P3"} {
		mirror, _, _ := tree.Get(ctx, cloud.LobbySlotPath("ABCDE", i, cloud.FieldScene))
		user, _, _ := tree.Get(ctx, cloud.UserPath(id, cloud.FieldScene))
		if mirror != user {
			t.Fatalf("slot %d mirror %q != user leaf %q", i, mirror, user)
		}
	}
}

func TestAssignScenes_NotInLobby(t *testing.T) {
	s := newTestSession(memtree.New(), "P1")
	if got := s.AssignScenes(context.Background()); got != -1 {
		t.Fatalf("want -1 outside a lobby, got %d", got)
	}
}
