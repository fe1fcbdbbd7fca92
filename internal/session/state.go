package session

import (
	"context"
	"strconv"

	"github.com/jcousins/clueroom/internal/cloud"
)

// LobbyState is the shared lifecycle of a lobby. Transitions are monotonic;
// a lobby never moves backwards.
type LobbyState int

const (
	StateLobby LobbyState = iota
	StateInGame
	StateVoting
	StateFinished
)

func (s LobbyState) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateInGame:
		return "in-game"
	case StateVoting:
		return "voting"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// LobbyError classifies the outcome of starting a game.
type LobbyError int

const (
	LobbyErrorNone LobbyError = iota
	LobbyErrorUnknown
	LobbyErrorTooFewPlayers
	LobbyErrorTooManyPlayers
)

// LobbyState reads the current state of the joined lobby. The second return
// is false when the state leaf is absent or unreadable.
func (s *Session) LobbyState(ctx context.Context) (LobbyState, bool) {
	if s.code == "" {
		return StateLobby, false
	}
	v, ok, err := s.tree.Get(ctx, cloud.LobbyStatePath(s.code))
	if err != nil || !ok {
		return StateLobby, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return StateLobby, false
	}
	return LobbyState(n), true
}

// SetLobbyState advances the lobby state. Writes that would move the state
// backwards are dropped; every client enforces this locally since no central
// arbiter does.
func (s *Session) SetLobbyState(ctx context.Context, st LobbyState) {
	if s.code == "" {
		return
	}
	if cur, ok := s.LobbyState(ctx); ok && st <= cur {
		return
	}
	_ = s.tree.Set(ctx, cloud.LobbyStatePath(s.code), strconv.Itoa(int(st)))
}
