package treeserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/jcousins/clueroom/pkg/wire"
)

const writeTimeout = 3 * time.Second

// WatchHandler streams change events for a prefix over a websocket. The
// prefix comes from the ?prefix= query parameter; an empty prefix watches
// the whole tree.
func WatchHandler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// CloseRead keeps control frames serviced; clients never send data.
		ctx := conn.CloseRead(r.Context())

		events, cancel, err := h.Watch(ctx, prefix)
		if err != nil {
			return
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					// Dropped as a slow watcher or hub shutdown.
					return
				}
				payload, _ := json.Marshal(wire.WatchEvent{Path: ev.Path, Value: ev.Value, Exists: ev.Exists})
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, payload)
				wcancel()
				if err != nil {
					log.Debug("watch write failed", zap.String("prefix", prefix), zap.Error(err))
					return
				}
			}
		}
	}
}
