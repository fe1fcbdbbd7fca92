// Package notify watches lobby writes and pushes notifications to the
// other members' devices. It covers the out-of-app half of the protocol:
// players who backgrounded the client still learn about joins, leaves,
// game starts, new clues, readiness, votes and retry requests.
package notify

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jcousins/clueroom/internal/cloud"
)

type changeKind int

const (
	changeCreate changeKind = iota
	changeUpdate
	changeDelete
)

type rule struct {
	// match reports whether the path-under-users suffix triggers this
	// rule. rest is the path below lobbies/{code}, e.g.
	// "users/2/ready" or "state".
	match func(rest string) (slot string, ok bool)
	kinds []changeKind
	// includeActor keeps the writing slot in the recipient set.
	includeActor bool
	title        string
}

func slotField(field string) func(string) (string, bool) {
	return func(rest string) (string, bool) {
		seg := strings.Split(rest, "/")
		if len(seg) == 3 && seg[0] == "users" && seg[2] == field {
			return seg[1], true
		}
		return "", false
	}
}

func slotItemField(field string) func(string) (string, bool) {
	return func(rest string) (string, bool) {
		seg := strings.Split(rest, "/")
		if len(seg) == 5 && seg[0] == "users" && seg[2] == "items" && seg[4] == field {
			return seg[1], true
		}
		return "", false
	}
}

func stateLeaf(rest string) (string, bool) {
	if rest == "state" {
		return "", true
	}
	return "", false
}

var rules = []rule{
	{match: slotField(cloud.FieldUserID), kinds: []changeKind{changeCreate}, title: "A player has joined the game!"},
	{match: slotField(cloud.FieldUserID), kinds: []changeKind{changeDelete}, title: "A player has left the game!"},
	{match: stateLeaf, kinds: []changeKind{changeUpdate}, includeActor: true, title: "The game has started!"},
	{match: slotItemField(cloud.FieldDescription), kinds: []changeKind{changeCreate, changeUpdate, changeDelete}, title: "New items have been added to the database!"},
	{match: slotField(cloud.FieldReady), kinds: []changeKind{changeCreate}, title: "A player is ready to vote!"},
	{match: slotItemField(cloud.FieldHighlight), kinds: []changeKind{changeCreate}, includeActor: true, title: "New items have been highlighted in the database!"},
	{match: slotField(cloud.FieldVote), kinds: []changeKind{changeCreate}, title: "A player has voted!"},
	{match: slotField(cloud.FieldRetry), kinds: []changeKind{changeCreate}, title: "A player wants to retry!"},
}

// Sender delivers one notification to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, title, body string) error
}

// lister is satisfied by the in-process hub; it lets the worker seed its
// create/update bookkeeping from leaves that predate it.
type lister interface {
	List(ctx context.Context, prefix string) (map[string]string, error)
}

type Worker struct {
	tree       cloud.Tree
	sender     Sender
	log        *zap.Logger
	maxPlayers int
	known      map[string]bool
}

func NewWorker(tree cloud.Tree, sender Sender, maxPlayers int, log *zap.Logger) *Worker {
	return &Worker{
		tree:       tree,
		sender:     sender,
		log:        log,
		maxPlayers: maxPlayers,
		known:      make(map[string]bool),
	}
}

// Run blocks, dispatching notifications until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if l, ok := w.tree.(lister); ok {
		nodes, err := l.List(ctx, "lobbies")
		if err != nil {
			return err
		}
		for path := range nodes {
			w.known[path] = true
		}
	}

	events, cancel, err := w.tree.Watch(ctx, "lobbies")
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Worker) handle(ctx context.Context, ev cloud.Event) {
	kind := w.classify(ev)

	code, rest, ok := cloud.ParseLobbyPath(ev.Path)
	if !ok {
		return
	}
	for _, r := range rules {
		actor, matched := r.match(rest)
		if !matched || !kindIn(kind, r.kinds) {
			continue
		}
		tokens := w.tokens(ctx, code, actor, r.includeActor)
		if len(tokens) == 0 {
			continue
		}
		if err := w.sender.Send(ctx, tokens, r.title, r.title); err != nil {
			w.log.Warn("notification send failed",
				zap.String("lobby", code),
				zap.String("title", r.title),
				zap.Error(err))
		}
	}
}

func (w *Worker) classify(ev cloud.Event) changeKind {
	was := w.known[ev.Path]
	if ev.Exists {
		w.known[ev.Path] = true
		if was {
			return changeUpdate
		}
		return changeCreate
	}
	delete(w.known, ev.Path)
	return changeDelete
}

// tokens resolves the notification tokens of the lobby's members,
// excluding the slot that wrote unless the rule includes it.
func (w *Worker) tokens(ctx context.Context, code, actorSlot string, includeActor bool) []string {
	var tokens []string
	dup := make(map[string]bool)
	for slot := 0; slot < w.maxPlayers; slot++ {
		s := strconv.Itoa(slot)
		if !includeActor && s == actorSlot {
			continue
		}
		id, ok, err := w.tree.Get(ctx, cloud.LobbySlotPath(code, slot, cloud.FieldUserID))
		if err != nil || !ok || id == "" {
			continue
		}
		token, ok, err := w.tree.Get(ctx, cloud.UserPath(id, cloud.FieldToken))
		if err != nil || !ok || token == "" || dup[token] {
			continue
		}
		dup[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

func kindIn(k changeKind, kinds []changeKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
