// Package client is the connecting side used by tools and integration
// tests: it dials the server, classifies transport failures, and speaks the
// packet envelope.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/James-Trimble/PlayPalace11/internal/connection"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// DialTimeout bounds how long a connection attempt may take before it is
// reported as ConnectTimeout.
const DialTimeout = 10 * time.Second

// Client is one client-side connection.
type Client struct {
	ws *websocket.Conn

	// ExpectingDisconnect mirrors the server-side flag: set when the server
	// announced a disconnect, so a following socket closure is not reported
	// as ConnectionLost.
	expectingDisconnect bool
}

// Dial connects to url. Failures are classified into the transport-fatal
// taxonomy: deadline exceeded becomes ErrConnectTimeout, anything else
// ErrConnectFailed.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, connection.ErrConnectTimeout
		}
		return nil, connection.ErrConnectFailed
	}
	return &Client{ws: ws}, nil
}

// Send writes one packet.
func (c *Client) Send(ctx context.Context, pkt protocol.Packet) error {
	return wsjson.Write(ctx, c.ws, pkt)
}

// Read blocks for the next packet. A disconnect packet flips the expected
// flag before it is returned; an unflagged closure is ErrConnectionLost.
func (c *Client) Read(ctx context.Context) (protocol.Packet, error) {
	var pkt protocol.Packet
	if err := wsjson.Read(ctx, c.ws, &pkt); err != nil {
		if c.expectingDisconnect {
			return protocol.Packet{}, errors.New("client: connection closed")
		}
		return protocol.Packet{}, connection.ErrConnectionLost
	}
	if pkt.Type == protocol.PacketDisconnect {
		c.expectingDisconnect = true
	}
	return pkt, nil
}

// Authorize runs the login exchange and returns the server's reply, which is
// either authorize_success, a MOTD-preceded success, or a disconnect.
func (c *Client) Authorize(ctx context.Context, version protocol.Version, username, password, locale string, dismissed []string) (protocol.Packet, error) {
	err := c.Send(ctx, protocol.Packet{
		Type:           protocol.PacketAuthorize,
		Version:        &version,
		Username:       username,
		Password:       password,
		Locale:         locale,
		DismissedMotds: dismissed,
	})
	if err != nil {
		return protocol.Packet{}, err
	}
	return c.Read(ctx)
}

// Close ends the session. The server is expected to see this as the
// client-initiated exit it is.
func (c *Client) Close() {
	_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
}
