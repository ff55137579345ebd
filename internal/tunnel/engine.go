package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Watchdog is the ambient request deadline spec.md §4.8 allows: the
// request handler may race the pump against this timer and, on expiry,
// transition to CLOSING with a normal close code.
const Watchdog = 8 * time.Second

// Engine drives one tunnel connection end to end: upgrade, detect, parse,
// dial, pump, retry, teardown. It holds no per-connection state itself —
// each call to ServeHTTP constructs its own *Connection (spec.md §9: no
// reference graph, a plain struct owned by the request task).
type Engine struct {
	Upgrader websocket.Upgrader
	Dial     DialFunc
	// RegionDir resolves a path segment shaped like a region-code list to a
	// configured proxy address (spec.md §4.4).
	RegionDir *RegionDirectory
	// FallbackRetry is the optional single retry endpoint configured via
	// PROXY_IP (SPEC_FULL.md §3), used when the path segment names neither
	// a direct endpoint nor a region list.
	FallbackRetry *UpstreamEndpoint
	Log           *zap.SugaredLogger
	OnAccept      func(Protocol)
	OnBytes       func(dir string, n int)
	OnRetry       func()
	OnError       func(stage string)
	// OnReject fires when a session is turned away before or during the
	// handshake, with a reason matching metrics.Reason* (bad_headers,
	// region_empty, dial_failed).
	OnReject func(reason string)
}

func NewEngine(dial DialFunc, regionDir *RegionDirectory, log *zap.SugaredLogger) *Engine {
	return &Engine{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		Dial:      dial,
		RegionDir: regionDir,
		Log:       log,
	}
}

// ServeHTTP implements the tunnel entry of spec.md §6: it upgrades the
// request, ingests the first frame (including any early data carried in
// Sec-WebSocket-Protocol), detects and parses the protocol header, dials
// the outbound connection, and drives the bidirectional pump with the
// one-shot retry path.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request, pathSegment string) {
	// The retry endpoint is resolved from the path segment alone, so it is
	// validated before the upgrade: a region code list that names no
	// configured proxies fails the request outright (spec.md §4.4/§7)
	// rather than surfacing as a mid-session dial failure.
	retryEndpoint, hasRetry, rerr := e.resolveRetryEndpoint(pathSegment)
	if rerr != nil {
		http.Error(w, "region has no configured proxies", http.StatusBadGateway)
		e.reject(ReasonRegionEmpty)
		return
	}

	earlyData, err := decodeEarlyData(r.Header.Get("Sec-WebSocket-Protocol"))
	if err != nil {
		http.Error(w, "bad early data", http.StatusBadRequest)
		e.errorf("detect")
		return
	}

	ws, err := e.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.errorf("detect")
		return
	}

	conn := NewConnection(ws)

	ctx, cancel := context.WithTimeout(r.Context(), Watchdog)
	defer cancel()

	first, err := e.firstBuffer(ws, earlyData)
	if err != nil {
		conn.Close(1002, safeReason(err))
		e.errorf("parse")
		e.reject(ReasonBadHeaders)
		return
	}

	header, err := parseHeader(first)
	if err != nil {
		conn.Close(1002, safeReason(err))
		e.errorf("parse")
		e.reject(ReasonBadHeaders)
		return
	}
	conn.protocol = header.Protocol
	conn.respPrefix = header.RespPrefix
	conn.isDNS = header.Command == CommandUDP && header.Protocol == ProtocolShadowsocks
	conn.isUDP = header.Command == CommandUDP
	conn.udpHost = header.Host
	conn.udpPort = header.Port

	if e.OnAccept != nil {
		e.OnAccept(header.Protocol)
	}

	primary, err := e.dialPrimary(ctx, header)
	if err != nil {
		if !hasRetry || header.Command != CommandTCP || !conn.consumeRetry() {
			conn.Close(1002, "dial failed")
			e.errorf("dial")
			e.reject(ReasonDialFailed)
			return
		}
		primary, err = e.dialRetry(ctx, retryEndpoint, header)
		if err != nil {
			conn.Close(1002, "dial failed")
			e.errorf("dial")
			e.reject(ReasonDialFailed)
			return
		}
		if e.OnRetry != nil {
			e.OnRetry()
		}
		// respPrefix is left intact on this path: no egress pump has run
		// yet, so the first reply from the retry endpoint carries it.
	}
	conn.setOutbound(primary)

	e.runPumpsWithRetry(ctx, conn, header, retryEndpoint, hasRetry)
}

// runPumpsWithRetry drives the pumps against the current outbound slot. If
// the egress side closes having received nothing and a retry endpoint is
// configured, it rewrites the original residual payload to a second
// outbound connection and starts a fresh egress pump without a prefix —
// at most once per connection (spec.md §4.7 "at most one retry").
func (e *Engine) runPumpsWithRetry(ctx context.Context, conn *Connection, header TunnelHeader, retryEndpoint UpstreamEndpoint, hasRetry bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- runIngressPump(ctx, conn, e.onBytes("in"))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- e.runEgressWithRetry(ctx, conn, header, retryEndpoint, hasRetry)
	}()

	err := <-errCh
	cancel()
	conn.Close(1000, "")
	wg.Wait()

	if err != nil && !IsBenign(err) {
		e.Log.Warnw("tunnel session ended with error",
			"err", err,
			"protocol", conn.protocol.String(),
			"dns", conn.IsDNS(),
			"gotUpstreamData", conn.HasIncomingData(),
		)
		e.errorf("pump")
	}
}

// runEgressWithRetry runs the egress pump and, on an empty-result close
// with a retry endpoint available, dials the retry endpoint and runs one
// more egress pump without a response prefix (spec.md §4.7).
func (e *Engine) runEgressWithRetry(ctx context.Context, conn *Connection, header TunnelHeader, retryEndpoint UpstreamEndpoint, hasRetry bool) error {
	received, err := runEgressPump(ctx, conn, conn.currentOutbound(), e.onBytes("out"))
	if received || !hasRetry || header.Command != CommandTCP || conn.isClosing() || !conn.consumeRetry() {
		return err
	}
	next, derr := e.dialRetry(ctx, retryEndpoint, header)
	if derr != nil {
		return err
	}
	if e.OnRetry != nil {
		e.OnRetry()
	}
	conn.setOutbound(next)
	conn.takePrefix() // the retry egress pump runs without a response prefix
	_, err = runEgressPump(ctx, conn, next, e.onBytes("out"))
	return err
}

// onBytes returns a closure suitable for the pumps' onBytes callback, or
// nil when no OnBytes hook is registered (avoids a nil-check on every
// chunk in the hot path).
func (e *Engine) onBytes(dir string) func(int) {
	if e.OnBytes == nil {
		return nil
	}
	return func(n int) { e.OnBytes(dir, n) }
}

func (e *Engine) dialPrimary(ctx context.Context, header TunnelHeader) (net.Conn, error) {
	if header.Command == CommandUDP {
		return dialUDPRelay(ctx, e.Dial, defaultUDPRelayEndpoint(), header, header.Residual)
	}
	return dialOutbound(ctx, e.Dial, UpstreamEndpoint{Host: header.Host, Port: header.Port}, header.Residual)
}

func (e *Engine) dialRetry(ctx context.Context, endpoint UpstreamEndpoint, header TunnelHeader) (net.Conn, error) {
	return dialOutbound(ctx, e.Dial, endpoint, header.Residual)
}

// resolveRetryEndpoint interprets the inbound path segment as the one-shot
// retry target (spec.md §4.7's "configured upstream relay, distinct from
// the originally parsed destination"): a literal host:port, or a region
// code list resolved through RegionDir. A region code list that names no
// configured proxies is a fatal *RegionEmptyError (spec.md §4.4/§7: fail
// the request with 502), returned to the caller rather than swallowed. An
// unparsable or absent segment falls back to FallbackRetry if configured,
// otherwise no retry endpoint is available.
func (e *Engine) resolveRetryEndpoint(pathSegment string) (UpstreamEndpoint, bool, error) {
	if pathSegment != "" && e.RegionDir != nil {
		endpoint, err := e.RegionDir.Resolve(pathSegment)
		if err == nil {
			return endpoint, true, nil
		}
		var regionErr *RegionEmptyError
		if errors.As(err, &regionErr) {
			return UpstreamEndpoint{}, false, err
		}
	}
	if e.FallbackRetry != nil {
		return *e.FallbackRetry, true, nil
	}
	return UpstreamEndpoint{}, false, nil
}

// reject fires OnReject, if registered, with a reason from metrics.Reason*
// (named here rather than imported to avoid a tunnel->metrics dependency).
func (e *Engine) reject(reason string) {
	if e.OnReject != nil {
		e.OnReject(reason)
	}
}

// Rejection reasons, matching internal/metrics' Reason* constants by value.
const (
	ReasonRegionEmpty = "region_empty"
	ReasonBadHeaders  = "bad_headers"
	ReasonDialFailed  = "dial_failed"
)

// firstBuffer returns the first protocol-header-bearing buffer: the
// decoded early data if present, otherwise the first WebSocket message.
func (e *Engine) firstBuffer(ws *websocket.Conn, earlyData []byte) ([]byte, error) {
	if len(earlyData) > 0 {
		return earlyData, nil
	}
	mt, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
		return nil, errors.New("first websocket message was not data")
	}
	return data, nil
}

func (e *Engine) errorf(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}

func safeReason(err error) string {
	var herr *HeaderError
	if errors.As(err, &herr) {
		return herr.Reason
	}
	return fmt.Sprintf("%v", err)
}
