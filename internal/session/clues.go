package session

import (
	"context"
	"sync"

	"github.com/jcousins/clueroom/internal/cloud"
)

// Clue is one entry of a player's item array. An empty Name means the slot
// is vacant.
type Clue struct {
	Name        string
	Description string
	Image       string
}

// UploadItem writes the three fields of the caller's own item at the given
// 1-based board slot, to both path shapes.
func (s *Session) UploadItem(ctx context.Context, slot int, clue Clue) {
	own := s.slotOf(ctx, s.self)
	fields := []struct{ field, value string }{
		{cloud.FieldName, clue.Name},
		{cloud.FieldDescription, clue.Description},
		{cloud.FieldImage, clue.Image},
	}
	for _, f := range fields {
		if own >= 0 && s.code != "" {
			_ = s.tree.Set(ctx, cloud.LobbySlotItemPath(s.code, own, slot, f.field), f.value)
		}
		_ = s.tree.Set(ctx, cloud.UserItemPath(s.self, slot, f.field), f.value)
	}
}

// RemoveItem vacates the caller's item at the given slot.
func (s *Session) RemoveItem(ctx context.Context, slot int) {
	s.UploadItem(ctx, slot, Clue{})
}

// HighlightItem flags the caller's item at the given slot. The flag is a
// notification trigger only; boards do not render it.
func (s *Session) HighlightItem(ctx context.Context, slot int) {
	if own := s.slotOf(ctx, s.self); own >= 0 && s.code != "" {
		_ = s.tree.Set(ctx, cloud.LobbySlotItemPath(s.code, own, slot, cloud.FieldHighlight), "true")
	}
	_ = s.tree.Set(ctx, cloud.UserItemPath(s.self, slot, cloud.FieldHighlight), "true")
}

// DownloadClues fetches the full item array of the player at position
// playerNb in the caller's self-first ordering. The slice is 0-indexed by
// board position; ok is false when playerNb is out of range.
func (s *Session) DownloadClues(ctx context.Context, playerNb int) ([]Clue, bool) {
	players := s.Players(ctx)
	if playerNb < 0 || playerNb >= len(players) {
		return nil, false
	}
	id := players[playerNb]
	out := make([]Clue, s.itemSlots)
	for i := range out {
		out[i].Name, _, _ = s.tree.Get(ctx, cloud.UserItemPath(id, i+1, cloud.FieldName))
		out[i].Description, _, _ = s.tree.Get(ctx, cloud.UserItemPath(id, i+1, cloud.FieldDescription))
		out[i].Image, _, _ = s.tree.Get(ctx, cloud.UserItemPath(id, i+1, cloud.FieldImage))
	}
	return out, true
}

// SlotView is the rendered state of one board slot: what the UI layer shows
// without any further interpretation.
type SlotView struct {
	Clue      string // rendered clue object name, "" when none
	Hint      string // description text under the slot
	Image     string // resource id currently displayed
	ShowImage bool   // image element visible; false shows the fallback text
	Alert     bool   // unread marker on the slot
}

type boardKey struct {
	player int
	slot   int
}

// ClueEngine folds item change events into a board view model. Events for
// the name, description and image of the same clue arrive in any order, may
// arrive individually, and may be re-delivered; Apply is idempotent under
// all of that.
type ClueEngine struct {
	mu           sync.Mutex
	playerNumber func(string) int
	seen         *SeenLedger
	slots        map[boardKey]*SlotView
	playerAlerts map[int]bool
}

// NewClueEngine builds an engine. playerNumber maps a player key from an
// event path to the viewer's board index, negative for unknown players.
func NewClueEngine(playerNumber func(string) int, seen *SeenLedger) *ClueEngine {
	return &ClueEngine{
		playerNumber: playerNumber,
		seen:         seen,
		slots:        make(map[boardKey]*SlotView),
		playerAlerts: make(map[int]bool),
	}
}

// ClueEngine builds an engine bound to this session's roster snapshot and
// seen ledger.
func (s *Session) ClueEngine() *ClueEngine {
	return NewClueEngine(s.playerNumber, s.seen)
}

// Apply folds one change event into the board. Events whose path is not an
// item leaf, or whose player is not on the board, are ignored.
func (e *ClueEngine) Apply(ev cloud.Event) {
	player, slot, field, ok := cloud.ParseItemPath(ev.Path)
	if !ok {
		return
	}
	nb := e.playerNumber(player)
	if nb < 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.slot(nb, slot)

	// Deleted leaf: tear the slot down.
	if !ev.Exists {
		v.Clue = ""
		v.Hint = ""
		v.Image = ""
		v.ShowImage = false
		v.Alert = false
		return
	}

	switch field {
	case cloud.FieldName:
		if ev.Value == "" {
			// Vacated by the owner.
			v.Clue = ""
			v.Alert = false
			return
		}
		if v.Clue != ev.Value {
			v.Clue = ev.Value
		}
		if !e.seen.Seen(nb, slot, ev.Value) {
			v.Alert = true
			e.playerAlerts[nb] = true
		}
	case cloud.FieldDescription:
		v.Hint = ev.Value
	case cloud.FieldImage:
		if ev.Value != "" {
			v.Image = ev.Value
			v.ShowImage = true
		} else {
			v.Image = ""
			v.ShowImage = false
		}
	}
}

// Load seeds one player's column of the board from a fetched item array
// without raising alerts. Used for the initial download when a screen opens.
func (e *ClueEngine) Load(player int, clues []Clue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range clues {
		if c.Name == "" {
			continue
		}
		v := e.slot(player, i+1)
		v.Clue = c.Name
		v.Hint = c.Description
		v.Image = c.Image
		v.ShowImage = c.Image != ""
	}
}

// MarkViewed records that the viewer has this player's column on screen:
// every rendered clue is added to the seen ledger and its alerts clear.
func (e *ClueEngine) MarkViewed(player int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, v := range e.slots {
		if key.player != player {
			continue
		}
		if v.Clue != "" {
			e.seen.Add(player, key.slot, v.Clue)
		}
		v.Alert = false
	}
	e.playerAlerts[player] = false
}

// Slot returns a copy of the rendered state for one board position.
func (e *ClueEngine) Slot(player, slot int) SlotView {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.slots[boardKey{player, slot}]; ok {
		return *v
	}
	return SlotView{}
}

// PlayerAlert reports whether the player's summary indicator shows unread.
func (e *ClueEngine) PlayerAlert(player int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playerAlerts[player]
}

// slot returns the mutable view for a key, creating it on demand. Caller
// holds e.mu.
func (e *ClueEngine) slot(player, slot int) *SlotView {
	key := boardKey{player, slot}
	v, ok := e.slots[key]
	if !ok {
		v = &SlotView{}
		e.slots[key] = v
	}
	return v
}
