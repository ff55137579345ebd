package tunnel

import (
	"context"
	"fmt"
	"net"
)

// DefaultUDPRelayHost and DefaultUDPRelayPort are the fixed gateway
// spec.md §4.6 names: a remote TCP-reachable service that accepts
// "udp:HOST:PORT|PAYLOAD"-framed datagrams and returns the remote side's
// UDP replies over the same TCP connection.
const (
	DefaultUDPRelayHost = "udp-relay.hobihaus.space"
	DefaultUDPRelayPort = 7300
)

// udpFrameDelim is the '|' separator between the relay address prefix and
// the raw UDP payload.
const udpFrameDelim = 0x7C

// dialUDPRelay opens a TCP connection to the configured relay endpoint and
// writes one framed message for the given destination and payload. The
// engine calls it once per tunnel session; every later message of that
// session is framed and written by the ingress pump on this same relay
// connection, so the relay connection is not reopened per message. See
// DESIGN.md for the trade-off.
func dialUDPRelay(ctx context.Context, dial DialFunc, relay UpstreamEndpoint, dest TunnelHeader, payload []byte) (net.Conn, error) {
	frame := buildUDPFrame(dest.Host, dest.Port, payload)
	conn, err := dial(ctx, "tcp", relay.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial udp relay %s: %w", relay.Addr(), err)
	}
	if _, err := conn.Write(frame); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write udp relay frame: %w", err)
	}
	return conn, nil
}

// buildUDPFrame renders "udp:" + host + ":" + port + "|" + payload.
func buildUDPFrame(host string, port uint16, payload []byte) []byte {
	prefix := fmt.Sprintf("udp:%s:%d", host, port)
	frame := make([]byte, 0, len(prefix)+1+len(payload))
	frame = append(frame, prefix...)
	frame = append(frame, udpFrameDelim)
	frame = append(frame, payload...)
	return frame
}

func defaultUDPRelayEndpoint() UpstreamEndpoint {
	return UpstreamEndpoint{Host: DefaultUDPRelayHost, Port: DefaultUDPRelayPort}
}
