package tunnel

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRunIngressPumpForwardsToOutbound(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{inbound: [][]byte{[]byte("hello"), []byte("world")}}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	c.setOutbound(serverSide)

	done := make(chan error, 1)
	go func() { done <- runIngressPump(context.Background(), c, nil) }()

	buf := make([]byte, 5)
	_, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	_, err = clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf))

	serverSide.Close()
	err = <-done
	assert.Error(t, err)
}

func TestRunIngressPumpFramesEveryUDPMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{inbound: [][]byte{[]byte("first"), []byte("second"), []byte("third")}}
	c := NewConnection(ws)
	c.isUDP = true
	c.udpHost = "1.1.1.1"
	c.udpPort = 53
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	c.setOutbound(serverSide)

	done := make(chan error, 1)
	go func() { done <- runIngressPump(context.Background(), c, nil) }()

	for _, want := range []string{"first", "second", "third"} {
		frame := buildUDPFrame("1.1.1.1", 53, []byte(want))
		buf := make([]byte, len(frame))
		_, err := io.ReadFull(clientSide, buf)
		require.NoError(t, err)
		assert.Equal(t, frame, buf)
	}

	serverSide.Close()
	<-done
}

func TestRunIngressPumpDoesNotFrameTCPMessages(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{inbound: [][]byte{[]byte("plain")}}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	c.setOutbound(serverSide)

	done := make(chan error, 1)
	go func() { done <- runIngressPump(context.Background(), c, nil) }()

	buf := make([]byte, 5)
	_, err := io.ReadFull(clientSide, buf)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(buf))

	serverSide.Close()
	<-done
}

func TestRunIngressPumpReportsBytesViaHook(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{inbound: [][]byte{[]byte("abc")}}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	c.setOutbound(serverSide)

	var got int
	done := make(chan error, 1)
	go func() { done <- runIngressPump(context.Background(), c, func(n int) { got = n }) }()

	buf := make([]byte, 3)
	_, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	serverSide.Close()
	<-done
}

func TestRunIngressPumpErrorsWithoutOutbound(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{inbound: [][]byte{[]byte("x")}}
	c := NewConnection(ws)
	err := runIngressPump(context.Background(), c, nil)
	require.Error(t, err)
}

func TestRunEgressPumpSendsPrefixOnFirstChunkOnly(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{}
	c := NewConnection(ws)
	c.respPrefix = []byte{0xAA, 0xBB}
	serverSide, clientSide := net.Pipe()
	c.setOutbound(serverSide)

	done := make(chan struct {
		received bool
		err      error
	}, 1)
	go func() {
		received, err := runEgressPump(context.Background(), c, serverSide, nil)
		done <- struct {
			received bool
			err      error
		}{received, err}
	}()

	go func() {
		_, _ = clientSide.Write([]byte("chunk1"))
		time.Sleep(10 * time.Millisecond)
		_, _ = clientSide.Write([]byte("chunk2"))
		clientSide.Close()
	}()

	res := <-done
	assert.True(t, res.received)
	assert.ErrorIs(t, res.err, io.EOF)
	require.Len(t, ws.written, 2)
	assert.Equal(t, []byte{0xAA, 0xBB, 'c', 'h', 'u', 'n', 'k', '1'}, ws.written[0])
	assert.Equal(t, []byte("chunk2"), ws.written[1])
	assert.Nil(t, c.respPrefix)
}

func TestRunEgressPumpNoPrefixWhenNoneSet(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()

	done := make(chan bool, 1)
	go func() {
		received, _ := runEgressPump(context.Background(), c, serverSide, nil)
		done <- received
	}()

	go func() {
		_, _ = clientSide.Write([]byte("data"))
		clientSide.Close()
	}()

	received := <-done
	assert.True(t, received)
	require.Len(t, ws.written, 1)
	assert.Equal(t, []byte("data"), ws.written[0])
}

func TestRunEgressPumpReportsFalseWhenNothingReceived(t *testing.T) {
	ws := &fakeWS{}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()
	clientSide.Close()

	received, err := runEgressPump(context.Background(), c, serverSide, nil)
	assert.False(t, received)
	assert.Error(t, err)
}

func TestRunEgressPumpReportsBytesViaHook(t *testing.T) {
	defer goleak.VerifyNone(t)
	ws := &fakeWS{}
	c := NewConnection(ws)
	serverSide, clientSide := net.Pipe()

	var total int
	done := make(chan struct{})
	go func() {
		_, _ = runEgressPump(context.Background(), c, serverSide, func(n int) { total += n })
		close(done)
	}()

	_, _ = clientSide.Write([]byte("12345"))
	clientSide.Close()
	<-done

	assert.Equal(t, 5, total)
}
