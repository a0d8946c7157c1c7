package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/synapsestack/csaw-engine/internal/notify"
	"github.com/synapsestack/csaw-engine/internal/services"
)

// Server exposes the engine over HTTP: analysis, session control, window
// introspection, health, and the websocket push channel.
type Server struct {
	logger   *slog.Logger
	http     *http.Server
	service  *services.AnalysisService
	notifier *notify.Registry
}

// NewServer builds the HTTP server with its routes registered.
func NewServer(addr string, service *services.AnalysisService, notifier *notify.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:   logger,
		service:  service,
		notifier: notifier,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/sessions/reset", s.handleSessionReset)
	mux.HandleFunc("GET /v1/windows", s.handleWindows)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes websocket subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.notifier != nil {
		_ = s.notifier.Shutdown(ctx)
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}
