package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/intake-assistant/internal/adapters/http"
	"github.com/kirillkom/intake-assistant/internal/bootstrap"
	"github.com/kirillkom/intake-assistant/internal/config"
	"github.com/kirillkom/intake-assistant/internal/observability/logging"
	"github.com/kirillkom/intake-assistant/internal/observability/metrics"
	"github.com/kirillkom/intake-assistant/internal/observability/telemetry"
)

const serviceName = "intake-api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(cfg.TracingEnabled, serviceName, os.Stdout, logger)
	if err != nil {
		logger.Error("tracer_init_failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer_shutdown_failed", "error", err)
		}
	}()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:         serviceName,
		Logger:          logger,
		Registerer:      httpMetrics.Registerer(),
		BreakerObserver: httpMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		cfg,
		app.ProcessUC,
		app.SubmitUC,
		app.RunQueryUC,
		app.ProcessUC,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithBreakerStates(app.Executor.States),
	).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.APIMaxConnections)
	}

	go func() {
		logger.Info("api_listening",
			"addr", server.Addr,
			"max_connections", cfg.APIMaxConnections,
			"auth_enabled", cfg.APIAuthToken != "",
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	logger.Info("api_stopped")
}
