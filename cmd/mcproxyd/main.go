// Command mcproxyd is the daemon shell wiring a buffer, a frame dispatcher,
// and a request context together behind a TCP listener. The route tree
// itself is out of scope for this repository: this shell accepts
// connections, parses frames, and hands each one to a RequestContext whose
// StartProcessing call drives a stub RouteTree that always replies
// immediately, standing in for a real production router.
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mrizzuto/mcproxy"
	"github.com/mrizzuto/mcproxy/config"
	mcmetrics "github.com/mrizzuto/mcproxy/metrics"
)

func main() {
	configPath := flag.String("config", "mcproxyd.yaml", "path to the router configuration file")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	registerer := prometheus.NewRegistry()
	routerMetrics := mcmetrics.NewRouterMetrics(registerer, &mcmetrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Subsystem: cfg.Metrics.Subsystem,
	})
	serverMetricsHandler := mcmetrics.ServerHandler(registerer, &mcmetrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Subsystem: cfg.Metrics.Subsystem,
	})

	proxy := newStubProxy()

	server := mcproxy.NewServer(cfg.ListenAddress)
	server.OnMetricsUpdate(serverMetricsHandler)
	server.OnAcceptError(func(err error) {
		logger.Warn().Err(err).Msg("accept error")
	})
	server.OnSocketPanic(func(err error) {
		logger.Error().Err(err).Msg("panic in connection handler")
	})
	server.OnServerPanic(func(err error) {
		logger.Error().Err(err).Msg("panic in background job")
	})

	server.ForkingStrategy(mcproxy.GoroutinePerConnection(func(socket *mcproxy.Socket) {
		handleConnection(socket, proxy, cfg, routerMetrics, logger)
	}))

	configWatcher := mcproxy.NewConfigWatcherService(*configPath, func(next *config.RouterConfig) {
		logger.Info().Str("generation", next.Generation).Msg("configuration reloaded")
		proxy.replaceConfig(next)
	}, func(err error) {
		logger.Warn().Err(err).Msg("configuration reload failed")
	})

	metricsService := mcproxy.NewMetricsService(&http.Server{
		Addr:    cfg.Metrics.Address,
		Handler: promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}),
	})

	logger.Info().Str("address", cfg.ListenAddress).Msg("starting mcproxyd")

	if err := mcproxy.StartAndBlock(server, metricsService, configWatcher); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}
