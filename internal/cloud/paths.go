package cloud

import (
	"fmt"
	"strconv"
	"strings"
)

// Leaf field names for per-player item slots.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldImage       = "image"
	FieldHighlight   = "highlight"
)

// Per-player leaf names, shared by the lobby slot shape and the users/ shape.
const (
	FieldUserID = "user-id"
	FieldLobby  = "lobby"
	FieldScene  = "scene"
	FieldReady  = "ready"
	FieldVote   = "vote"
	FieldRetry  = "retry"
	FieldToken  = "notification-token"
)

// LobbyPath is the root of a lobby's subtree.
func LobbyPath(code string) string {
	return "lobbies/" + code
}

// LobbyStatePath holds the lobby state enum as a string; its existence is
// what marks a lobby as created.
func LobbyStatePath(code string) string {
	return "lobbies/" + code + "/state"
}

// LobbySlotPath addresses one per-player field in a lobby slot.
func LobbySlotPath(code string, slot int, field string) string {
	return fmt.Sprintf("lobbies/%s/users/%d/%s", code, slot, field)
}

// LobbySlotItemPath addresses one field of an item in a lobby slot.
func LobbySlotItemPath(code string, slot, item int, field string) string {
	return fmt.Sprintf("lobbies/%s/users/%d/items/slot-%d/%s", code, slot, item, field)
}

// UserPath addresses a per-player field keyed by stable player id. These
// leaves mirror the lobby slot fields.
func UserPath(id, field string) string {
	return "users/" + id + "/" + field
}

// UserItemsPath is the subtree holding all of a player's item slots.
func UserItemsPath(id string) string {
	return "users/" + id + "/items"
}

// UserItemPath addresses one field of a player's item, 1-based slot.
func UserItemPath(id string, item int, field string) string {
	return fmt.Sprintf("users/%s/items/slot-%d/%s", id, item, field)
}

// ParseItemPath extracts (player key, item slot, field) from an item leaf
// path of either shape:
//
//	lobbies/{code}/users/{key}/items/slot-{n}/{field}
//	users/{key}/items/slot-{n}/{field}
//
// The player key is whatever occupies the segment before "items": a stable
// id in the users/ shape, a slot index in the lobby shape.
func ParseItemPath(path string) (player string, item int, field string, ok bool) {
	seg := strings.Split(path, "/")
	for i := 1; i+2 < len(seg); i++ {
		if seg[i] != "items" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(seg[i+1], "slot-"))
		if err != nil || n < 1 {
			return "", 0, "", false
		}
		return seg[i-1], n, seg[i+2], true
	}
	return "", 0, "", false
}

// ParseUserField extracts (player key, field) from a two-segment leaf such
// as users/{key}/ready or lobbies/{code}/users/{key}/vote.
func ParseUserField(path string) (player, field string, ok bool) {
	seg := strings.Split(path, "/")
	if len(seg) < 3 {
		return "", "", false
	}
	return seg[len(seg)-2], seg[len(seg)-1], true
}

// ParseLobbyPath extracts the lobby code and the remainder of the path from
// a leaf under lobbies/. Remainder is empty for the lobby root.
func ParseLobbyPath(path string) (code, rest string, ok bool) {
	seg := strings.SplitN(path, "/", 3)
	if len(seg) < 2 || seg[0] != "lobbies" || seg[1] == "" {
		return "", "", false
	}
	if len(seg) == 3 {
		rest = seg[2]
	}
	return seg[1], rest, true
}
