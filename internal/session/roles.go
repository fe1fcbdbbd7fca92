package session

import (
	"context"
	"strconv"

	"github.com/jcousins/clueroom/internal/cloud"
)

// AssignScenes deals out scene numbers 1..N over the current members using a
// locally generated random permutation, writing every member's scene field,
// not just the caller's own. Returns the caller's 1-based position within
// its own permutation, -1 when the caller is not a member.
//
// Each client that calls this shuffles independently and overwrites the
// whole assignment; the persisted result is whichever caller wrote last, and
// the returned value can disagree with it if another client's write lands
// afterwards. No leader election resolves this.
func (s *Session) AssignScenes(ctx context.Context) int {
	if s.code == "" {
		return -1
	}
	entries := s.entries(ctx, s.code)
	s.rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})

	own := -1
	for i, e := range entries {
		if e.id == s.self {
			own = i + 1
		}
		scene := strconv.Itoa(i + 1)
		_ = s.tree.Set(ctx, cloud.LobbySlotPath(s.code, e.slot, cloud.FieldScene), scene)
		_ = s.tree.Set(ctx, cloud.UserPath(e.id, cloud.FieldScene), scene)
	}
	return own
}

// PlayerScene reads a member's assigned scene number, 0 when unassigned.
func (s *Session) PlayerScene(ctx context.Context, id string) int {
	v, ok, err := s.tree.Get(ctx, cloud.UserPath(id, cloud.FieldScene))
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
