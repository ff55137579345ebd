package tunnel

import (
	"context"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

const egressChunkSize = 32 * 1024

// runIngressPump copies client -> outbound: every subsequent WebSocket
// message (the first was already consumed for header parsing) is written
// to the outbound connection, honoring back-pressure by awaiting each
// write before reading the next message (spec.md §4.7). For a UDP-tunneled
// connection each message is re-framed with the "udp:host:port|" prefix
// before the write (spec.md §4.6: one relay write per UDP-framed message);
// ordinary TCP connections write the message verbatim. onBytes, if
// non-nil, is called after each successful write with the message's
// payload length (not counting any UDP relay framing).
func runIngressPump(ctx context.Context, c *Connection, onBytes func(n int)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			continue
		}
		out := c.currentOutbound()
		if out == nil {
			return fmt.Errorf("ingress pump: outbound slot empty")
		}
		framed := c.frameForOutbound(data)
		if _, err := out.Write(framed); err != nil {
			return err
		}
		if onBytes != nil {
			onBytes(len(data))
		}
	}
}

// runEgressPump copies outbound -> client. On the first chunk it takes the
// (at most once) response prefix and sends prefix+chunk concatenated in a
// single WebSocket message; every later chunk is sent verbatim (spec.md
// §4.7, invariants P1/P2). It reports whether any byte was ever received
// from the outbound side, which callers use to drive the retry rule
// (§4.7: "has_incoming_data is set only after at least one byte arrives").
// onBytes, if non-nil, is called with the byte count of each chunk read.
func runEgressPump(ctx context.Context, c *Connection, out io.Reader, onBytes func(n int)) (receivedAny bool, err error) {
	buf := make([]byte, egressChunkSize)
	first := true
	for {
		if ctx.Err() != nil {
			return receivedAny, ctx.Err()
		}
		n, rerr := out.Read(buf)
		if n > 0 {
			receivedAny = true
			c.hasIncomingData.Store(true)
			if onBytes != nil {
				onBytes(n)
			}
			chunk := buf[:n]
			if first {
				first = false
				prefix := c.takePrefix()
				if len(prefix) > 0 {
					msg := make([]byte, 0, len(prefix)+len(chunk))
					msg = append(msg, prefix...)
					msg = append(msg, chunk...)
					if werr := c.ws.WriteMessage(websocket.BinaryMessage, msg); werr != nil {
						return receivedAny, werr
					}
					if rerr != nil {
						return receivedAny, ioErrOrNil(rerr)
					}
					continue
				}
			}
			if werr := c.ws.WriteMessage(websocket.BinaryMessage, append([]byte(nil), chunk...)); werr != nil {
				return receivedAny, werr
			}
		}
		if rerr != nil {
			return receivedAny, ioErrOrNil(rerr)
		}
	}
}

func ioErrOrNil(err error) error {
	if err == io.EOF {
		return io.EOF
	}
	return err
}
