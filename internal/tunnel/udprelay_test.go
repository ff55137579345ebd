package tunnel

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUDPFrame(t *testing.T) {
	frame := buildUDPFrame("1.1.1.1", 53, []byte("query"))
	assert.Equal(t, "udp:1.1.1.1:53|query", string(frame))
}

func TestBuildUDPFrameEmptyPayload(t *testing.T) {
	frame := buildUDPFrame("example.com", 443, nil)
	assert.Equal(t, "udp:example.com:443|", string(frame))
}

func TestDefaultUDPRelayEndpoint(t *testing.T) {
	ep := defaultUDPRelayEndpoint()
	assert.Equal(t, DefaultUDPRelayHost, ep.Host)
	assert.EqualValues(t, DefaultUDPRelayPort, ep.Port)
}

func TestDialUDPRelayWritesFramedMessage(t *testing.T) {
	var dialed *recordingConn
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		assert.Equal(t, "relay.example:7300", addr)
		dialed = &recordingConn{}
		return dialed, nil
	}

	dest := TunnelHeader{Host: "8.8.8.8", Port: 53}
	relay := UpstreamEndpoint{Host: "relay.example", Port: 7300}

	conn, err := dialUDPRelay(context.Background(), dial, relay, dest, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "udp:8.8.8.8:53|payload", string(dialed.written))
	assert.Same(t, net.Conn(dialed), conn)
}
