// Command rawrlistener runs a Hello World HTTP and gRPC server behind the
// listener middleware. Exchanges are logged, exported as Prometheus metrics
// on /metrics and recorded for lookup on /exchanges/{request-id}.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gl "github.com/Keksclan/goRawrListener"
	"github.com/Keksclan/goRawrListener/cache"
	"github.com/Keksclan/goRawrListener/clientip"
	"github.com/Keksclan/goRawrListener/internal/config"
	"github.com/Keksclan/goRawrListener/metrics"
	"github.com/Keksclan/goRawrListener/policy"
	"github.com/Keksclan/goRawrListener/recorder"
	"github.com/Keksclan/goRawrListener/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	var opts []config.LoadOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := cfg.Log.NewLogger(os.Stdout)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("rawrlistener stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col, err := metrics.New(metrics.Config{Registerer: reg})
	if err != nil {
		return err
	}

	ips, err := clientip.NewResolver(cfg.Listener.TrustedProxies)
	if err != nil {
		return err
	}

	opts := append(gl.DefaultOptions(),
		gl.WithLogger(log),
		gl.WithBodyLimit(cfg.Listener.BodyLimit),
		gl.WithClientIPResolver(ips),
		gl.WithMetrics(col),
		gl.WithPolicies(
			policy.Group("ops").Exact("/metrics").Prefix("/exchanges/").Prefix("/grpc.health.v1.Health/").
				Policy(policy.Policy{Skip: true}),
		),
	)

	if cfg.Tracing.Stdout {
		tp, err := stdoutTracer()
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
		opts = append(opts, gl.WithOpenTelemetry(tracing.Config{
			TracerProvider: tp,
			Propagators:    propagation.TraceContext{},
		}))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", col.Handler())
	mux.HandleFunc("/", hello)

	if cfg.Recorder.Enabled {
		store, closeStore, err := exchangeStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()
		rec := recorder.New(store,
			recorder.WithTTL(cfg.Recorder.TTL),
			recorder.WithLogger(log),
		)
		mux.Handle("/exchanges/", rec.Handler("/exchanges/"))
		opts = append(opts, gl.WithRecorder(rec))
	}

	srv := gl.NewServer(mux, opts...)
	healthpb.RegisterHealthServer(srv.GRPC(), health.NewServer())

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddress, err)
	}

	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Server.Address).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		log.Info().Str("addr", grpcLis.Addr().String()).Msg("grpc listening")
		if err := srv.GRPC().Serve(grpcLis); err != nil {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	srv.GRPC().GracefulStop()
	return httpServer.Shutdown(shutdownCtx)
}

func hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Hello World!\n")
}

func stdoutTracer() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// exchangeStore returns the recorder cache: in-process only, or tiered over
// Redis when redis.address is set. An unreachable Redis is logged and the
// tiered cache keeps serving from L1.
func exchangeStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, func(), error) {
	l1, err := cache.NewL1(cfg.Recorder.L1MaxCost)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Redis.Address == "" {
		return l1, l1.Close, nil
	}

	l2 := cache.DialL2(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l2.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unreachable, starting degraded")
	}

	closeAll := func() {
		_ = l2.Close()
		l1.Close()
	}
	return cache.NewTiered(l1, l2, cache.WithLogger(log)), closeAll, nil
}
