package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"docflow/internal/document/handler"
	jwttoken "docflow/internal/jwt_token"
	"docflow/internal/platform/config"
	"docflow/internal/platform/httpserver"
	"docflow/internal/platform/logger"
	"docflow/internal/platform/metrics"
	"docflow/internal/platform/middleware"
	"docflow/internal/platform/tracing"
	"docflow/pkg/platform/httputil"
	authmw "docflow/pkg/platform/middleware/auth"
	"docflow/pkg/platform/middleware/requesttime"
)

// main loads configuration, wires the backends chosen there and serves the
// document API until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Auth.JWTSigningKey == "" {
		return errors.New("DOCFLOW_JWT_SIGNING_KEY is required")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	deps, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	httpMetrics := metrics.NewHTTP()

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(httpMetrics))

	r.Get("/healthz", deps.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	docs := handler.New(deps.service, deps.gate, log,
		handler.WithMaxUpload(cfg.Blob.MaxSize),
		handler.WithAttachmentTTL(cfg.Blob.URLTTL),
	)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Storage.TxTimeout * 2))
		r.Use(authmw.RequireActor(jwttoken.NewJWTServiceAdapter(tokens), log))
		docs.Register(r)
	})

	srv := httpserver.New(cfg.Server, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Backend,
			"sequences", cfg.Storage.SequenceBackend,
			"policy", cfg.Policy.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(a.checks))}
	status := http.StatusOK
	for name, check := range a.checks {
		if err := check(r.Context()); err != nil {
			a.log.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}
