package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// MetricsServer serves the recorder's registry on /metrics.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a server for addr. It does not listen until Start.
func NewMetricsServer(addr string, recorder *PrometheusRecorder) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.GetRegistry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	return &MetricsServer{server: &http.Server{Addr: addr, Handler: mux}}
}

// Start binds the listen address and serves in the background.
func (s *MetricsServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	logger.Infof("Serving Prometheus metrics on %s/metrics.", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
