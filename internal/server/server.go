package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"arbiscope/internal/config"
	"arbiscope/internal/exchange"
	"arbiscope/internal/history"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
	"arbiscope/internal/paper"
)

// Deps bundles everything the API surface reads from or mutates.
type Deps struct {
	Logger        *slog.Logger
	Quotes        *market.QuoteStore
	Snapshots     *market.SnapshotStore
	Engine        *paper.Engine
	History       *history.Service
	Opportunities func() []model.Opportunity
	Feeds         []exchange.FeedClient
	Metrics       *metrics.Metrics
}

// Server is the local read/write HTTP API over the running simulation.
type Server struct {
	logger *slog.Logger
	router *mux.Router
	server *http.Server
	deps   Deps
}

// New creates the API server and registers all routes.
func New(cfg config.HTTPConfig, deps Deps) *Server {
	s := &Server{
		logger: deps.Logger,
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	api.HandleFunc("/markets", s.handleMarkets).Methods(http.MethodGet)
	api.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleOpenTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}/close", s.handleCloseTrade).Methods(http.MethodPost)
	api.HandleFunc("/autopilot", s.handleGetAutoPilot).Methods(http.MethodGet)
	api.HandleFunc("/autopilot", s.handleSetAutoPilot).Methods(http.MethodPut)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
