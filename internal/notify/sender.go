package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type pushMessage struct {
	To    []string `json:"to"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
}

// HTTPSender posts notifications to a push gateway as a single JSON
// message fanned out over the device tokens.
type HTTPSender struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSender) Send(ctx context.Context, tokens []string, title, body string) error {
	payload, err := json.Marshal(pushMessage{To: tokens, Title: title, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("push gateway: status %d", resp.StatusCode)
	}
	return nil
}
