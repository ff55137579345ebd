// Package app wires the configuration loader, structured logger, metrics
// registry, tunnel engine, and HTTP route table into a runnable server,
// adapted from the teacher's internal/run.go.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hobihaus/edgetunnel/internal/config"
	"github.com/hobihaus/edgetunnel/internal/httpapi"
	"github.com/hobihaus/edgetunnel/internal/logging"
	"github.com/hobihaus/edgetunnel/internal/metrics"
	"github.com/hobihaus/edgetunnel/internal/tunnel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Run loads configuration, builds the server, and blocks serving the
// tunnel and page routes until the listener fails or the context is
// cancelled. dev selects the human-readable development logger in place
// of the production JSON encoder.
func Run(ctx context.Context, dev bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}

	var log *zap.SugaredLogger
	if dev {
		log, err = logging.NewDevelopment()
	} else {
		log, err = logging.New()
	}
	if err != nil {
		return fmt.Errorf("app: build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	regionDir := tunnel.NewRegionDirectory(cfg.ProxyList)

	var dialer net.Dialer
	engine := tunnel.NewEngine(dialer.DialContext, regionDir, log)
	if cfg.ProxyIP != "" {
		if fallback, ferr := tunnel.ParseEndpoint(cfg.ProxyIP); ferr == nil {
			engine.FallbackRetry = &fallback
		} else {
			log.Warnw("ignoring invalid PROXY_IP", "proxy_ip", cfg.ProxyIP, "err", ferr)
		}
	}
	wireMetrics(engine)

	router := httpapi.NewRouter(engine, cfg, log)

	startMetricsServer(cfg.MetricsAddr, log)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infow("edgetunnel listening", "addr", cfg.ListenAddr, "metrics", cfg.MetricsAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: listen: %w", err)
	}
	return nil
}

// wireMetrics attaches the tunnel engine's lifecycle hooks to the
// Prometheus collectors (spec.md §6.5), mirroring the teacher's practice of
// incrementing counters at the handler boundary rather than deep inside
// the pump loop.
func wireMetrics(e *tunnel.Engine) {
	e.OnAccept = func(p tunnel.Protocol) {
		metrics.Protocol.WithLabelValues(p.String()).Inc()
	}
	e.OnBytes = func(dir string, n int) {
		label := "ingress"
		if dir == "out" {
			label = "egress"
		}
		metrics.Bytes.WithLabelValues(label).Add(float64(n))
	}
	e.OnRetry = func() {
		metrics.Retries.Inc()
	}
	e.OnError = func(stage string) {
		metrics.Errors.WithLabelValues(stage).Inc()
	}
	e.OnReject = func(reason string) {
		metrics.Rejected.WithLabelValues(reason).Inc()
	}
}

// startMetricsServer runs promhttp.Handler() on a separate internal
// listener, following the teacher's startMetricsServer pattern.
func startMetricsServer(addr string, log *zap.SugaredLogger) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Infow("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server error", "err", err)
		}
	}()
}
