package session

import (
	"testing"

	"github.com/jcousins/clueroom/internal/cloud"
)

func testPlayerNumber(id string) int {
	switch id {
	case "self":
		return 0
	case "P2":
		return 1
	case "P3":
		return 2
	default:
		return -1
	}
}

func nameEvent(player string, slot int, value string) cloud.Event {
	return cloud.Event{Path: cloud.UserItemPath(player, slot, cloud.FieldName), Value: value, Exists: true}
}

func descEvent(player string, slot int, value string) cloud.Event {
	return cloud.Event{Path: cloud.UserItemPath(player, slot, cloud.FieldDescription), Value: value, Exists: true}
}

func imageEvent(player string, slot int, value string) cloud.Event {
	return cloud.Event{Path: cloud.UserItemPath(player, slot, cloud.FieldImage), Value: value, Exists: true}
}

func TestClueEngine_FieldEventsInAnyOrder(t *testing.T) {
	orders := [][]cloud.Event{
		{nameEvent("P2", 3, "Key"), imageEvent("P2", 3, ""), descEvent("P2", 3, "A small key")},
		{descEvent("P2", 3, "A small key"), nameEvent("P2", 3, "Key"), imageEvent("P2", 3, "")},
		{imageEvent("P2", 3, ""), descEvent("P2", 3, "A small key"), nameEvent("P2", 3, "Key")},
	}

	for i, events := range orders {
		e := NewClueEngine(testPlayerNumber, NewSeenLedger())
		for _, ev := range events {
			e.Apply(ev)
		}

		v := e.Slot(1, 3)
		if v.Clue != "Key" {
			t.Fatalf("order %d: clue want Key, got %q", i, v.Clue)
		}
		if v.Hint != "A small key" {
			t.Fatalf("order %d: hint want 'A small key', got %q", i, v.Hint)
		}
		if v.ShowImage {
			t.Fatalf("order %d: empty image must show the fallback text", i)
		}
	}
}

func TestClueEngine_RedeliveryIsIdempotent(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())
	ev := nameEvent("P2", 3, "Key")

	e.Apply(ev)
	first := e.Slot(1, 3)
	e.Apply(ev)
	e.Apply(ev)

	if got := e.Slot(1, 3); got != first {
		t.Fatalf("re-delivery changed the view: %+v -> %+v", first, got)
	}
}

func TestClueEngine_AlertOncePerTriple(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())

	e.Apply(nameEvent("P2", 3, "Key"))
	if !e.Slot(1, 3).Alert || !e.PlayerAlert(1) {
		t.Fatalf("first unseen name should raise slot and player alerts")
	}

	// Viewer looks at the column; alerts clear and the triple becomes seen.
	e.MarkViewed(1)
	if e.Slot(1, 3).Alert || e.PlayerAlert(1) {
		t.Fatalf("viewing should clear alerts")
	}

	e.Apply(nameEvent("P2", 3, "Key"))
	e.Apply(nameEvent("P2", 3, "Key"))
	if e.Slot(1, 3).Alert || e.PlayerAlert(1) {
		t.Fatalf("a seen triple must never alert again")
	}

	// A different name in the same slot is a new triple.
	e.Apply(nameEvent("P2", 3, "Candlestick"))
	if !e.Slot(1, 3).Alert {
		t.Fatalf("a new name is unseen and should alert")
	}
	if e.Slot(1, 3).Clue != "Candlestick" {
		t.Fatalf("rendered clue should be replaced, got %q", e.Slot(1, 3).Clue)
	}
}

func TestClueEngine_TeardownOnAbsent(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())
	e.Apply(nameEvent("P2", 3, "Key"))
	e.Apply(descEvent("P2", 3, "A small key"))
	e.Apply(imageEvent("P2", 3, "img/key"))

	e.Apply(cloud.Event{Path: cloud.UserItemPath("P2", 3, cloud.FieldName), Exists: false})

	if got := e.Slot(1, 3); got != (SlotView{}) {
		t.Fatalf("absent leaf should tear the slot down, got %+v", got)
	}
}

func TestClueEngine_EmptyNameVacatesSlot(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())
	e.Apply(nameEvent("P2", 3, "Key"))

	e.Apply(nameEvent("P2", 3, ""))

	v := e.Slot(1, 3)
	if v.Clue != "" || v.Alert {
		t.Fatalf("empty name should clear the rendered clue, got %+v", v)
	}
}

func TestClueEngine_IgnoresUnknownPlayersAndPaths(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())
	e.Apply(nameEvent("stranger", 1, "Key"))
	e.Apply(cloud.Event{Path: "users/P2/ready", Value: "true", Exists: true})

	if got := e.Slot(1, 1); got != (SlotView{}) {
		t.Fatalf("unexpected board mutation: %+v", got)
	}
}

func TestClueEngine_LoadSeedsWithoutAlerts(t *testing.T) {
	e := NewClueEngine(testPlayerNumber, NewSeenLedger())
	e.Load(1, []Clue{{Name: "Rope", Description: "Coiled", Image: "img/rope"}, {}})

	v := e.Slot(1, 1)
	if v.Clue != "Rope" || v.Hint != "Coiled" || !v.ShowImage {
		t.Fatalf("load did not seed the slot: %+v", v)
	}
	if v.Alert || e.PlayerAlert(1) {
		t.Fatalf("initial load must not raise alerts")
	}
	if got := e.Slot(1, 2); got != (SlotView{}) {
		t.Fatalf("vacant entries must stay empty: %+v", got)
	}
}
