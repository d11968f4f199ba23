package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/sqlguard/pkg/lib/profile"
)

const shutdownTimeout = 5 * time.Second

// Option applies a configuration option to the given config.
type Option func(s *serverConfig)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(sc *serverConfig) {
		sc.logger = logger
	}
}

// WithProfiling serves pprof handlers next to the metrics.
func WithProfiling(enabled bool) Option {
	return func(sc *serverConfig) {
		sc.profiling = enabled
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(sc *serverConfig) {
		sc.gatherer = g
	}
}

type serverConfig struct {
	logger    logrus.FieldLogger
	gatherer  prometheus.Gatherer
	profiling bool
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		logger:   logrus.StandardLogger(),
		gatherer: prometheus.DefaultGatherer,
	}
}

// Handler returns the mux serving /healthz, /metrics and, if enabled, pprof.
func Handler(options ...Option) http.Handler {
	sc := defaultServerConfig()
	for _, o := range options {
		o(&sc)
	}
	return sc.handler()
}

func (sc serverConfig) handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(sc.gatherer, promhttp.HandlerOpts{}))
	if sc.profiling {
		profile.RegisterHandlers(mux)
	}
	return mux
}

// Serve listens on addr and serves until ctx is done, then shuts the server
// down gracefully.
func Serve(ctx context.Context, addr string, options ...Option) error {
	sc := defaultServerConfig()
	for _, o := range options {
		o(&sc)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %s", addr)
	}
	return sc.serve(ctx, lis)
}

func (sc serverConfig) serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: sc.handler(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	sc.logger.WithField("address", lis.Addr().String()).Info("serving metrics")
	err := srv.Serve(lis)
	stop()
	shutdownErr := <-done
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "metrics server failed")
	}
	return shutdownErr
}
