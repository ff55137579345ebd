package tunnel

import (
	"context"
	"fmt"
	"net"
)

// DialFunc opens an outbound TCP connection. Production code uses
// net.Dialer.DialContext; tests substitute an in-memory pipe.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialOutbound opens a TCP connection to endpoint and writes the residual
// payload in one shot before returning the connection, per spec.md §4.5.
// Invariant P5: nothing is written before this call, and nothing else is
// written to conn until the caller starts pumping.
func dialOutbound(ctx context.Context, dial DialFunc, endpoint UpstreamEndpoint, residual []byte) (net.Conn, error) {
	conn, err := dial(ctx, "tcp", endpoint.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint.Addr(), err)
	}
	if len(residual) > 0 {
		if _, err := conn.Write(residual); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("write residual payload to %s: %w", endpoint.Addr(), err)
		}
	}
	return conn, nil
}
