// Package ws is the client half of the transport: a typed JSON message
// stream over one persistent websocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/zmagdon/watchparty/pkg/protocol"
)

// ErrMalformed marks an inbound frame that did not decode. The caller drops
// the message and keeps reading; it is never session-fatal.
var ErrMalformed = errors.New("ws: malformed message")

const dialTimeout = 5 * time.Second

// Session sends and receives typed protocol messages over a duplex
// connection.
type Session interface {
	Send(ctx context.Context, msg protocol.Message) error
	Receive(ctx context.Context) (protocol.Message, error)
	Close() error
}

// Conn implements Session over a coder/websocket connection.
type Conn struct {
	conn *websocket.Conn
}

// Dial connects to <baseURL>/room/<roomID>.
func Dial(ctx context.Context, baseURL, roomID string) (*Conn, error) {
	u := strings.TrimRight(baseURL, "/") + "/room/" + roomID

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Send(ctx context.Context, msg protocol.Message) error {
	return wsjson.Write(ctx, c.conn, msg)
}

// Receive blocks for the next frame. A frame that fails to decode returns
// ErrMalformed; any other error means the transport is gone.
func (c *Conn) Receive(ctx context.Context) (protocol.Message, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return protocol.Message{}, err
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
