package session

import "sync"

type seenKey struct {
	player int
	slot   int
	name   string
}

// SeenLedger records which (player, slot, clue-name) triples this viewer has
// already had on screen, so the same clue never raises a second unread
// alert. It is strictly viewer-local state: it never touches the shared tree
// and is reset whenever a session starts.
type SeenLedger struct {
	mu  sync.Mutex
	set map[seenKey]struct{}
}

func NewSeenLedger() *SeenLedger {
	return &SeenLedger{set: make(map[seenKey]struct{})}
}

func (l *SeenLedger) Add(player, slot int, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set[seenKey{player, slot, name}] = struct{}{}
}

func (l *SeenLedger) Seen(player, slot int, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.set[seenKey{player, slot, name}]
	return ok
}

func (l *SeenLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = make(map[seenKey]struct{})
}
