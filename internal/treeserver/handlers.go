package treeserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/jcousins/clueroom/pkg/wire"
)

// Routes wires the tree API. Clients read and write individual leaves under
// /v1/tree/ and stream changes from /v1/watch.
func Routes(h *Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/v1/tree/*", GetNode(h))
	r.Head("/v1/tree/*", HeadNode(h))
	r.Put("/v1/tree/*", PutNode(h))
	r.Delete("/v1/tree/*", DeleteNode(h))
	r.Get("/v1/watch", WatchHandler(h, log))
	r.Get("/v1/lobbies/{code}/qr", QRHandler)
	return r
}

func treePath(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

func GetNode(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := treePath(r)
		if path == "" {
			writeError(w, http.StatusBadRequest, "missing path")
			return
		}
		value, ok, err := h.Get(r.Context(), path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no such node")
			return
		}
		writeJSON(w, http.StatusOK, wire.Node{Path: path, Value: value})
	}
}

// HeadNode is the existence check: 200 when the leaf is present, 404
// otherwise, no body either way.
func HeadNode(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := treePath(r)
		if path == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, ok, err := h.Get(r.Context(), path)
		switch {
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
		case ok:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func PutNode(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := treePath(r)
		if path == "" {
			writeError(w, http.StatusBadRequest, "missing path")
			return
		}
		var body wire.Node
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := h.Set(r.Context(), path, body.Value); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, wire.Node{Path: path, Value: body.Value})
	}
}

func DeleteNode(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := treePath(r)
		if path == "" {
			writeError(w, http.StatusBadRequest, "missing path")
			return
		}
		if err := h.Delete(r.Context(), path); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// QRHandler renders a join link for a lobby code as a PNG QR image, sized
// for phone cameras.
func QRHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + "/join/" + code

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.Error{Error: msg})
}
