package treeserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jcousins/clueroom/pkg/wire"
)

func TestTreeEndpoints(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(Routes(h, zap.NewNop()))
	defer srv.Close()

	get := func(path string) (*http.Response, wire.Node) {
		resp, err := http.Get(srv.URL + "/v1/tree/" + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var node wire.Node
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&node))
		}
		return resp, node
	}

	resp, _ := get("lobbies/ABCDE/state")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, _ := json.Marshal(wire.Node{Value: "0"})
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/tree/lobbies/ABCDE/state", bytes.NewReader(body))
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	resp, node := get("lobbies/ABCDE/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "lobbies/ABCDE/state", node.Path)
	require.Equal(t, "0", node.Value)

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v1/tree/lobbies/ABCDE/state", nil)
	require.NoError(t, err)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp3.Body.Close()
	require.Equal(t, http.StatusNoContent, resp3.StatusCode)

	resp, _ = get("lobbies/ABCDE/state")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	v, ok, err := h.Get(context.Background(), "lobbies/ABCDE/state")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, v)
}

func TestQRHandler(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(Routes(h, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/lobbies/ABCDE/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestHealthz(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(Routes(h, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
