// Package wstree is the remote implementation of cloud.Tree: leaves are
// read and written over the tree server's REST endpoints, and Watch
// streams change events over a websocket.
package wstree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/jcousins/clueroom/internal/cloud"
	"github.com/jcousins/clueroom/pkg/wire"
)

const watchBuffer = 32

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the tree server at base, e.g.
// "http://localhost:8080".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{},
	}
}

func (c *Client) nodeURL(path string) string {
	return c.base + "/v1/tree/" + path
}

func (c *Client) Get(ctx context.Context, path string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path), nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var node wire.Node
		if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
			return "", false, fmt.Errorf("get %s: %w", path, err)
		}
		return node.Value, true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
}

func (c *Client) Set(ctx context.Context, path, value string) error {
	body, err := json.Marshal(wire.Node{Value: value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.nodeURL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.nodeURL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.nodeURL(path), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", path, err)
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists %s: status %d", path, resp.StatusCode)
	}
}

func (c *Client) Watch(ctx context.Context, prefix string) (<-chan cloud.Event, cloud.CancelFunc, error) {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http")
	wsURL += "/v1/watch?prefix=" + url.QueryEscape(prefix)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("watch %s: %w", prefix, err)
	}

	out := make(chan cloud.Event, watchBuffer)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			conn.Close(websocket.StatusNormalClosure, "bye")
		})
	}

	go func() {
		defer close(out)
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var ev wire.WatchEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			select {
			case out <- cloud.Event{Path: ev.Path, Value: ev.Value, Exists: ev.Exists}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

var _ cloud.Tree = (*Client)(nil)
