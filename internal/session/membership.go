package session

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/jcousins/clueroom/internal/cloud"
)

// slotEntry pairs a slot index with the player id occupying it.
type slotEntry struct {
	slot int
	id   string
}

// Join adds the caller to the lobby identified by code.
//
// Membership is a fixed array of slots rewritten wholesale: the caller reads
// the occupied ids, appends itself, and writes every slot back in order. Two
// clients joining at once can both read the same pre-join snapshot and each
// write a full array that overwrites the other's addition; the last writer
// wins and the lost joiner gets no error. That race is inherent to the
// leaderless design.
func (s *Session) Join(ctx context.Context, code string) bool {
	exists, err := s.tree.Exists(ctx, cloud.LobbyStatePath(code))
	if err != nil || !exists {
		return false
	}

	players := ids(s.entries(ctx, code))

	// Idempotent re-join.
	if slices.Contains(players, s.self) {
		s.enter(ctx, code)
		return true
	}

	if len(players) >= s.maxPlayers {
		return false
	}

	players = append(players, s.self)
	for i, id := range players {
		_ = s.tree.Set(ctx, cloud.LobbySlotPath(code, i, cloud.FieldUserID), id)
	}
	s.enter(ctx, code)
	s.log.Debug("joined lobby", zap.String("code", code), zap.Int("players", len(players)))
	return true
}

func (s *Session) enter(ctx context.Context, code string) {
	s.code = code
	s.confirmed = false
	s.seen.Reset()
	_ = s.tree.Set(ctx, cloud.UserPath(s.self, cloud.FieldLobby), code)
	s.RefreshRoster(ctx)
}

// Leave clears the caller's own lobby reference, scene, ready flag, vote,
// retry flag and every item field. It does not vacate the caller's slot in the lobby array
// and never deletes the lobby; reclaiming abandoned lobbies is the sweeper's
// job, not this protocol's.
func (s *Session) Leave(ctx context.Context) {
	slot := s.slotOf(ctx, s.self)

	_ = s.tree.Delete(ctx, cloud.UserPath(s.self, cloud.FieldLobby))
	s.setOwnField(ctx, cloud.FieldScene, "0")
	s.clearOwnField(ctx, cloud.FieldReady)
	s.clearOwnField(ctx, cloud.FieldVote)
	s.clearOwnField(ctx, cloud.FieldRetry)

	for item := 1; item <= s.itemSlots; item++ {
		for _, field := range []string{cloud.FieldName, cloud.FieldDescription, cloud.FieldImage, cloud.FieldHighlight} {
			if slot >= 0 && s.code != "" {
				_ = s.tree.Delete(ctx, cloud.LobbySlotItemPath(s.code, slot, item, field))
			}
			_ = s.tree.Delete(ctx, cloud.UserItemPath(s.self, item, field))
		}
	}

	s.listeners.Close()
	s.log.Debug("left lobby", zap.String("code", s.code))
	s.code = ""
	s.setRoster(nil)
	s.confirmed = false
}

// entries scans the slot array and returns the occupied slots in order.
func (s *Session) entries(ctx context.Context, code string) []slotEntry {
	var out []slotEntry
	for i := 0; i < s.maxPlayers; i++ {
		v, ok, err := s.tree.Get(ctx, cloud.LobbySlotPath(code, i, cloud.FieldUserID))
		if err != nil || !ok || v == "" {
			continue
		}
		out = append(out, slotEntry{slot: i, id: v})
	}
	return out
}

func ids(entries []slotEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.id)
	}
	return out
}

// RefreshRoster re-reads the slot array. The roster snapshot is what event
// handlers use to map player ids to board indices, so it is only as current
// as the last refresh; listener registration refreshes it.
func (s *Session) RefreshRoster(ctx context.Context) {
	if s.code == "" {
		s.setRoster(nil)
		return
	}
	s.setRoster(s.entries(ctx, s.code))
}

func (s *Session) setRoster(roster []slotEntry) {
	s.rosterMu.Lock()
	s.roster = roster
	s.rosterMu.Unlock()
}

// Members returns the occupant ids in slot order.
func (s *Session) Members(ctx context.Context) []string {
	if s.code == "" {
		return nil
	}
	return ids(s.entries(ctx, s.code))
}

// Players returns the canonical self-first ordering: the caller, then the
// other members in slot order. Every client computes its own ordering, so
// index N names a different player on each client.
func (s *Session) Players(ctx context.Context) []string {
	return selfFirst(s.Members(ctx), s.self)
}

// OtherPlayers returns the members excluding the caller, in slot order.
func (s *Session) OtherPlayers(ctx context.Context) []string {
	var out []string
	for _, id := range s.Members(ctx) {
		if id != s.self {
			out = append(out, id)
		}
	}
	return out
}

// PlayerNumber maps a player id to its index in the caller's self-first
// ordering, -1 if the player is not a member.
func (s *Session) PlayerNumber(ctx context.Context, id string) int {
	return slices.Index(s.Players(ctx), id)
}

// playerNumber resolves against the roster snapshot instead of re-reading
// the tree; used on the event path, from watcher goroutines.
func (s *Session) playerNumber(id string) int {
	s.rosterMu.Lock()
	roster := s.roster
	s.rosterMu.Unlock()
	return slices.Index(selfFirst(ids(roster), s.self), id)
}

func selfFirst(members []string, self string) []string {
	out := []string{self}
	for _, id := range members {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// slotOf returns the slot index holding id, -1 when absent.
func (s *Session) slotOf(ctx context.Context, id string) int {
	if s.code == "" {
		return -1
	}
	for _, e := range s.entries(ctx, s.code) {
		if e.id == id {
			return e.slot
		}
	}
	return -1
}
