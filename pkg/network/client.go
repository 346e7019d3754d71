package network

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cbodonnell/gameflow/pkg/messages"
	"nhooyr.io/websocket"
)

// WSClient receives notification messages from a WSServer.
type WSClient struct {
	conn *websocket.Conn
}

type NewWSClientOptions struct {
	// URL of the notifications endpoint, e.g. ws://localhost:8889/notifications
	URL   string
	Token string
}

// DialWSClient connects to the notifications endpoint.
func DialWSClient(ctx context.Context, opts NewWSClientOptions) (*WSClient, error) {
	dialOpts := &websocket.DialOptions{}
	if opts.Token != "" {
		dialOpts.HTTPHeader = http.Header{}
		dialOpts.HTTPHeader.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, _, err := websocket.Dial(ctx, opts.URL, dialOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %v", opts.URL, err)
	}
	return &WSClient{conn: conn}, nil
}

// Listen calls handler for every message until ctx is done or the
// connection closes.
func (c *WSClient) Listen(ctx context.Context, handler func(*messages.Message)) error {
	for {
		msg, err := ReadMessageFromWS(ctx, c.conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		handler(msg)
	}
}

func (c *WSClient) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
