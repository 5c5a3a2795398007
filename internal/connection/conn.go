// Package connection wraps one live websocket: a buffered outbound queue so
// table broadcasts never block on a slow socket, the expected-disconnect
// flag, and the rejection choreography.
package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// Transport-fatal errors. Terminal for the affected connection only; a table
// treats the holder as having left.
var (
	ErrConnectionLost = errors.New("connection lost")
	ErrConnectTimeout = errors.New("connection timeout")
	ErrConnectFailed  = errors.New("connect failed")
)

const (
	// DisconnectGrace is how long the socket stays open after a rejection
	// packet is written, so the client's read loop sees the packet before
	// the close.
	DisconnectGrace = 500 * time.Millisecond

	writeTimeout = 10 * time.Second
	queueSize    = 64
)

// Conn is one server-side connection. Deliver is safe from any goroutine and
// never blocks; everything else belongs to the connection's own read loop.
type Conn struct {
	ws  *websocket.Conn
	log *logrus.Entry

	identity atomic.Value // string
	locale   atomic.Value // string

	expectingDisconnect atomic.Bool

	out       chan protocol.Packet
	closed    chan struct{}
	closeOnce sync.Once
}

// New wraps an accepted websocket and starts its writer.
func New(ws *websocket.Conn, log *logrus.Logger) *Conn {
	c := &Conn{
		ws:     ws,
		log:    log.WithField("component", "conn"),
		out:    make(chan protocol.Packet, queueSize),
		closed: make(chan struct{}),
	}
	c.locale.Store("en")
	c.identity.Store("")
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case pkt := <-c.out:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, c.ws, pkt)
			cancel()
			if err != nil {
				c.log.WithError(err).WithField("identity", c.Identity()).Debug("write failed")
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Deliver queues a packet without blocking. A client whose queue is full is
// dropped rather than allowed to stall a table's critical section.
func (c *Conn) Deliver(pkt protocol.Packet) {
	select {
	case c.out <- pkt:
	case <-c.closed:
	default:
		c.log.WithField("identity", c.Identity()).Warn("send queue full, dropping client")
		c.close()
	}
}

// Read blocks for the next packet. An unflagged socket closure comes back as
// ErrConnectionLost; a flagged one is a clean io exit.
func (c *Conn) Read(ctx context.Context) (protocol.Packet, error) {
	var pkt protocol.Packet
	if err := wsjson.Read(ctx, c.ws, &pkt); err != nil {
		if c.expectingDisconnect.Load() {
			return protocol.Packet{}, errors.New("connection closed")
		}
		return protocol.Packet{}, ErrConnectionLost
	}
	return pkt, nil
}

// Reject sends the single disconnect packet for a graceful rejection, holds
// the socket open for the grace interval, then closes. The expected flag is
// set before anything is written.
func (c *Conn) Reject(reason, downloadURL, minVersion string) {
	c.expectingDisconnect.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err := wsjson.Write(ctx, c.ws, protocol.Packet{
		Type:        protocol.PacketDisconnect,
		Reason:      reason,
		DownloadURL: downloadURL,
		MinVersion:  minVersion,
	})
	cancel()
	if err == nil {
		time.Sleep(DisconnectGrace)
	}
	c.close()
}

// ExpectDisconnect marks the next closure as intentional (logout, exit,
// table save shutdown).
func (c *Conn) ExpectDisconnect() {
	c.expectingDisconnect.Store(true)
}

// Expecting reports whether a disconnect was announced.
func (c *Conn) Expecting() bool {
	return c.expectingDisconnect.Load()
}

// Close tears the socket down immediately.
func (c *Conn) Close() {
	c.close()
}

// close skips the close handshake. Deliver runs inside table critical
// sections, so waiting up to the handshake timeout for a peer that may never
// answer would stall every member of the table.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.CloseNow()
	})
}

// Closed reports whether the connection is torn down.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// SetIdentity records the authorized identity.
func (c *Conn) SetIdentity(identity string) { c.identity.Store(identity) }

// Identity returns the authorized identity, "" before authorization.
func (c *Conn) Identity() string { return c.identity.Load().(string) }

// SetLocale records the client locale.
func (c *Conn) SetLocale(locale string) {
	if locale != "" {
		c.locale.Store(locale)
	}
}

// Locale returns the client locale, "en" by default.
func (c *Conn) Locale() string { return c.locale.Load().(string) }
