package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"sentinel/internal/model"
)

// Subscribe connects to the push channel and calls handler for every message
// until ctx is done (returns nil) or the connection fails. Frames that do not
// decode as an envelope are skipped.
func (c *Client) Subscribe(ctx context.Context, handler func(model.PushMessage)) error {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "push channel handshake failed"}
		}
		return fmt.Errorf("failed to connect to push channel: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("push channel closed: %w", err)
		}

		var msg model.PushMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			continue
		}
		handler(msg)
	}
}
