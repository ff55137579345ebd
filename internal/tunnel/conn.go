package tunnel

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeControlTimeout = 5 * time.Second

// wsConn is the subset of *websocket.Conn the engine depends on. Keeping
// it as an interface lets tests drive the pump with an in-process fake
// instead of a real socket pair.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Connection is the per-tunnel state owned by the request handler for the
// lifetime of one WebSocket (spec.md §3 "Connection"). Each pump receives
// an explicit handle to it rather than holding a reference cycle back to
// itself — the cyclic "remote socket wrapper" pattern spec.md §9 flags is
// deliberately not reproduced.
type Connection struct {
	ws wsConn

	mu       sync.Mutex
	outbound net.Conn // outbound slot; filled at most twice (primary + one retry)

	protocol   Protocol
	respPrefix []byte // single-use; cleared after the first egress send
	isDNS      bool

	isUDP   bool
	udpHost string
	udpPort uint16

	hasIncomingData atomic.Bool
	closing         atomic.Bool
	closeOnce       sync.Once
	retryUsed       atomic.Bool
}

// consumeRetry returns true the first time it is called on a connection
// and false on every later call, regardless of caller — it is the single
// gate enforcing spec.md's P3 invariant ("the outbound slot is filled at
// most twice").
func (c *Connection) consumeRetry() bool {
	return c.retryUsed.CompareAndSwap(false, true)
}

// NewConnection wraps ws for one tunnel lifetime.
func NewConnection(ws wsConn) *Connection {
	return &Connection{ws: ws}
}

// setOutbound fills the outbound slot. Called once for the primary dial and
// at most once more for the retry (spec.md invariant: "transitions exactly
// once from empty to filled, barring the retry path, which replaces it
// once").
func (c *Connection) setOutbound(conn net.Conn) {
	c.mu.Lock()
	prev := c.outbound
	c.outbound = conn
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}

func (c *Connection) currentOutbound() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbound
}

// takePrefix returns the response prefix exactly once; subsequent calls
// return nil. This is what guarantees P2 (single prefix).
func (c *Connection) takePrefix() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.respPrefix
	c.respPrefix = nil
	return p
}

// Close tears the connection down exactly once: closes the outbound slot
// (if filled) and sends a single WebSocket close frame with the given
// code and reason. Safe to call any number of times and from either pump
// (spec.md invariant P4 / §4.8 "idempotent guard").
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		if out := c.currentOutbound(); out != nil {
			_ = out.Close()
		}
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeControlTimeout))
		_ = c.ws.Close()
	})
}

func (c *Connection) isClosing() bool {
	return c.closing.Load()
}

// frameForOutbound reframes data for the UDP relay (spec.md §4.6: "each
// UDP-framed WebSocket message results in one relay write") when this
// connection tunnels a UDP destination, and returns data unchanged for an
// ordinary TCP tunnel.
func (c *Connection) frameForOutbound(data []byte) []byte {
	if !c.isUDP {
		return data
	}
	return buildUDPFrame(c.udpHost, c.udpPort, data)
}

// IsDNS reports whether this connection was classified as a Shadowsocks
// UDP/port-53 lookup (spec.md §4.5) rather than ordinary TCP relay traffic.
// The engine's session-error log uses it to tag DNS-shaped sessions.
func (c *Connection) IsDNS() bool {
	return c.isDNS
}

// HasIncomingData reports whether any byte was ever read from an outbound
// connection over this tunnel's lifetime, across both the primary dial and
// a retry. Logging uses it to distinguish a dead destination from one that
// answered and then the peer simply disconnected.
func (c *Connection) HasIncomingData() bool {
	return c.hasIncomingData.Load()
}
