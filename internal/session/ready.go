package session

import (
	"context"
	"sync"

	"github.com/jcousins/clueroom/internal/cloud"
)

// ReadyCoordinator tracks per-player ready flags and detects quorum: the
// condition that every tracked player is ready. Each client runs its own
// coordinator over its own view of the events and transitions to voting
// independently; there is no authoritative transition signal.
type ReadyCoordinator struct {
	mu        sync.Mutex
	self      string
	ready     map[string]bool
	quorumHit bool

	// OnOwnReady fires the first time the caller's own ready flag is
	// observed through the event stream, so the confirmation UI can catch
	// up if the flag was written elsewhere. Idempotent.
	OnOwnReady func()
	// OnQuorum fires exactly once, when every tracked player is ready.
	OnQuorum func()

	ownSeen bool
}

// NewReadyCoordinator seeds the tracked set: every member starts not-ready.
// Members joining after this point are not tracked (the member set is
// resolved once, matching listener registration).
func NewReadyCoordinator(self string, members []string) *ReadyCoordinator {
	ready := make(map[string]bool, len(members))
	for _, id := range members {
		ready[id] = false
	}
	return &ReadyCoordinator{self: self, ready: ready}
}

// ReadyCoordinator builds a coordinator over this session's current members,
// seeded with the ready flags already in the tree. The watch stream only
// carries changes, so a member who confirmed before this client registered
// would otherwise stay not-ready here forever and quorum would never be
// reached on this client.
func (s *Session) ReadyCoordinator(ctx context.Context) *ReadyCoordinator {
	c := NewReadyCoordinator(s.self, s.Members(ctx))
	for id := range c.ready {
		v, ok, err := s.tree.Get(ctx, cloud.UserPath(id, cloud.FieldReady))
		if err == nil && ok && v == "true" {
			c.seed(id)
		}
	}
	return c
}

// seed marks a tracked player ready without firing callbacks; callbacks are
// attached after construction, so pre-existing state is observed through
// Ready and Quorum instead.
func (c *ReadyCoordinator) seed(player string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tracked := c.ready[player]; !tracked {
		return
	}
	c.ready[player] = true
	if player == c.self {
		c.ownSeen = true
	}
}

// Apply folds one ready change event into the tracked map. Only events for
// a tracked player whose value is the literal "true" count; re-delivery is
// a no-op.
func (c *ReadyCoordinator) Apply(ev cloud.Event) {
	player, field, ok := cloud.ParseUserField(ev.Path)
	if !ok || field != cloud.FieldReady {
		return
	}
	if !ev.Exists || ev.Value != "true" {
		return
	}

	c.mu.Lock()
	if _, tracked := c.ready[player]; !tracked {
		c.mu.Unlock()
		return
	}
	c.ready[player] = true

	fireOwn := player == c.self && !c.ownSeen
	if fireOwn {
		c.ownSeen = true
	}
	fireQuorum := !c.quorumHit && c.allReady()
	if fireQuorum {
		c.quorumHit = true
	}
	c.mu.Unlock()

	if fireOwn && c.OnOwnReady != nil {
		c.OnOwnReady()
	}
	if fireQuorum && c.OnQuorum != nil {
		c.OnQuorum()
	}
}

// Quorum reports whether every tracked player is ready.
func (c *ReadyCoordinator) Quorum() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allReady()
}

// Ready reports one tracked player's flag.
func (c *ReadyCoordinator) Ready(player string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready[player]
}

// allReady assumes c.mu is held.
func (c *ReadyCoordinator) allReady() bool {
	if len(c.ready) == 0 {
		return false
	}
	for _, r := range c.ready {
		if !r {
			return false
		}
	}
	return true
}
