package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/guildview/panel-service/config"
)

// Server owns the panel's single HTTP listener. Every transport (REST,
// WebSocket upgrade, long-poll) mounts onto its router.
type Server struct {
	Mux *chi.Mux

	inner  *http.Server
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Server {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.HTTP.AssetsDir != "" {
		// Static panel frontend. API routes are mounted under /api and /ws
		// before the catch-all, so chi resolves them first.
		fs := http.FileServer(http.Dir(cfg.HTTP.AssetsDir))
		mux.Handle("/*", fs)
	}

	// Server spans ride the global tracer provider: no-op until the
	// telemetry module installs a real one.
	handler := otelhttp.NewHandler(mux, "panel-http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// A websocket span would live as long as the connection.
			return !strings.HasPrefix(r.URL.Path, "/ws")
		}),
	)

	return &Server{
		Mux: mux,
		inner: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		},
		logger: logger,
	}
}

// Start binds the listener synchronously, then serves in the background.
// A taken port fails app startup instead of surfacing minutes later.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.inner.Addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.inner.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", "err", err)
		}
	}()

	s.logger.Info("http server listening", "addr", s.inner.Addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// requestLogger emits one access line per request through the service logger.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
