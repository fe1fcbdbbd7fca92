// Package session implements the client side of the lobby synchronization
// protocol: code allocation, membership, role assignment, clue sync, the
// ready/vote state machine, and the change-listener lifecycle. All state
// lives in the remote tree; every client runs this same logic with no
// central arbiter, so the operations here are optimistic and last-write-wins
// at the path level.
package session

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jcousins/clueroom/internal/cloud"
)

const (
	// DefaultMaxPlayers is the lobby slot capacity.
	DefaultMaxPlayers = 4
	// DefaultItemSlots is the number of clue-board positions per player.
	DefaultItemSlots = 24
	// MinPlayers is the smallest playable lobby.
	MinPlayers = 2
)

// Session is one client's view of the protocol, bound to a stable player id.
type Session struct {
	tree cloud.Tree
	self string
	rng  *rand.Rand
	log  *zap.Logger

	maxPlayers int
	itemSlots  int

	code string

	// roster is the occupancy snapshot, refreshed on demand. Watcher
	// goroutines read it through playerNumber while registrations rewrite
	// it, so access goes through rosterMu.
	rosterMu sync.Mutex
	roster   []slotEntry

	seen      *SeenLedger
	listeners *Listeners
	confirmed bool // own ready already written this session
}

type Option func(*Session)

// WithRand injects the random source used for code generation and scene
// shuffling. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithMaxPlayers(n int) Option {
	return func(s *Session) { s.maxPlayers = n }
}

func WithItemSlots(n int) Option {
	return func(s *Session) { s.itemSlots = n }
}

// New binds a session to a stable player id. An empty id gets a generated
// one, for devices with no identity of their own.
func New(tree cloud.Tree, self string, opts ...Option) *Session {
	if self == "" {
		self = uuid.NewString()
	}
	s := &Session{
		tree:       tree,
		self:       self,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        zap.NewNop(),
		maxPlayers: DefaultMaxPlayers,
		itemSlots:  DefaultItemSlots,
		seen:       NewSeenLedger(),
		listeners:  newListeners(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Self returns the session's player id.
func (s *Session) Self() string { return s.self }

// Code returns the joined lobby code, empty if none.
func (s *Session) Code() string { return s.code }

// Seen exposes the viewer-local de-duplication ledger.
func (s *Session) Seen() *SeenLedger { return s.seen }

// CreateLobby allocates a fresh code, writes the initial state leaf and
// joins the new lobby. Returns false if code allocation exhausted its
// attempts or the join itself failed.
func (s *Session) CreateLobby(ctx context.Context) (string, bool) {
	code, ok := NewCodeAllocator(s.tree, s.rng).Allocate(ctx)
	if !ok {
		return "", false
	}
	s.SetLobbyStateUnchecked(ctx, code, StateLobby)
	if !s.Join(ctx, code) {
		return "", false
	}
	s.log.Debug("lobby created", zap.String("code", code))
	return code, true
}

// SetLobbyStateUnchecked writes a lobby's state leaf directly. Used at
// creation, before the session is a member.
func (s *Session) SetLobbyStateUnchecked(ctx context.Context, code string, st LobbyState) {
	_ = s.tree.Set(ctx, cloud.LobbyStatePath(code), lobbyStateValue(st))
}

// StartGame validates the member count, assigns scenes and advances the
// lobby to in-game. Returns the caller's own scene number.
func (s *Session) StartGame(ctx context.Context) (int, LobbyError) {
	members := s.Members(ctx)
	switch {
	case len(members) < MinPlayers:
		return -1, LobbyErrorTooFewPlayers
	case len(members) > s.maxPlayers:
		return -1, LobbyErrorTooManyPlayers
	}
	scene := s.AssignScenes(ctx)
	if scene < 0 {
		return -1, LobbyErrorUnknown
	}
	s.SetLobbyState(ctx, StateInGame)
	return scene, LobbyErrorNone
}

// ConfirmReady writes the caller's own ready flag. Pressing ready when
// already confirmed is a no-op.
func (s *Session) ConfirmReady(ctx context.Context) {
	if s.confirmed {
		return
	}
	s.confirmed = true
	s.setOwnField(ctx, cloud.FieldReady, "true")
}

// SubmitVote writes the caller's own vote. Tallying happens elsewhere.
func (s *Session) SubmitVote(ctx context.Context, suspect string) {
	s.setOwnField(ctx, cloud.FieldVote, suspect)
}

// RequestRetry signals that the caller wants another round. Consumed by the
// notification fan-out, not by other clients.
func (s *Session) RequestRetry(ctx context.Context) {
	s.setOwnField(ctx, cloud.FieldRetry, "true")
}

// SetNotificationToken registers the device push token under the caller's
// stable id. Lives outside any lobby, so it survives joins and leaves.
func (s *Session) SetNotificationToken(ctx context.Context, token string) {
	_ = s.tree.Set(ctx, cloud.UserPath(s.self, cloud.FieldToken), token)
}

// setOwnField writes one of the caller's per-player leaves to both the lobby
// slot path and the users/ mirror.
func (s *Session) setOwnField(ctx context.Context, field, value string) {
	if slot := s.slotOf(ctx, s.self); slot >= 0 && s.code != "" {
		_ = s.tree.Set(ctx, cloud.LobbySlotPath(s.code, slot, field), value)
	}
	_ = s.tree.Set(ctx, cloud.UserPath(s.self, field), value)
}

// clearOwnField deletes one of the caller's per-player leaves from both
// shapes.
func (s *Session) clearOwnField(ctx context.Context, field string) {
	if slot := s.slotOf(ctx, s.self); slot >= 0 && s.code != "" {
		_ = s.tree.Delete(ctx, cloud.LobbySlotPath(s.code, slot, field))
	}
	_ = s.tree.Delete(ctx, cloud.UserPath(s.self, field))
}

func lobbyStateValue(st LobbyState) string {
	// int-as-string, the tree only stores strings
	return strconv.Itoa(int(st))
}
