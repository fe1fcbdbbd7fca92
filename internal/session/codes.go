package session

import (
	"context"
	"math/rand"

	"github.com/jcousins/clueroom/internal/cloud"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// CodeLength is the lobby code length.
	CodeLength = 5
	// codeAttempts bounds collision retries.
	codeAttempts = 3
)

// CodeAllocator issues lobby codes that are not currently in use. The check
// is a plain read; two allocators racing on the same fresh code can both see
// it free. The caller's subsequent state write is what claims the code.
type CodeAllocator struct {
	tree cloud.Tree
	rng  *rand.Rand
}

func NewCodeAllocator(tree cloud.Tree, rng *rand.Rand) *CodeAllocator {
	return &CodeAllocator{tree: tree, rng: rng}
}

// Allocate draws up to three candidate codes and returns the first whose
// state leaf does not exist. Returns false if every draw collided. A read
// error during the existence check is treated as "does not exist".
func (a *CodeAllocator) Allocate(ctx context.Context) (string, bool) {
	for i := 0; i < codeAttempts; i++ {
		code := a.randomCode()
		exists, err := a.tree.Exists(ctx, cloud.LobbyStatePath(code))
		if err != nil {
			exists = false
		}
		if !exists {
			return code, true
		}
	}
	return "", false
}

// randomCode draws CodeLength independent uniform letters.
func (a *CodeAllocator) randomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[a.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}
