package treeserver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes lobbies that have no occupied slot and have
// been idle past the grace period. Abandoned lobbies otherwise accumulate
// forever, since leaving clears a player's fields but never removes the
// lobby subtree.
type Sweeper struct {
	Hub      *Hub
	Interval time.Duration
	Grace    time.Duration
	Log      *zap.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.sweepOnce(ctx)
			if err != nil {
				return err
			}
			if len(swept) > 0 {
				s.Log.Info("swept empty lobbies", zap.Strings("codes", swept))
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	select {
	case s.Hub.inbox <- sweepLobbies{grace: s.Grace, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case swept := <-reply:
		return swept, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
