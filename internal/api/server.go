// Package api serves the read-only product API, the dashboard and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/dashboard"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/validate"
)

const (
	defaultDays      = 30
	defaultDailyDays = 7
	maxDays          = 365
	defaultLimit     = 50
	maxLimit         = 500
	maxSeries        = 5
)

// Server provides the read API over a Store.
type Server struct {
	router  chi.Router
	store   storage.Store
	metrics *observability.Metrics
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg *config.Config, store storage.Store, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   store,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger.With("component", "api_server"),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// WithClock sets the clock used for history windows.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.API.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.API.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", dashboard.New(s.logger).ServeHTTP)
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Get("/products/{id}/history", s.handleProductHistory)
		r.Get("/history", s.handleHistorySeries)
		r.Get("/stats", s.handleStats)
		r.Get("/daily", s.handleDailySummary)
		r.Get("/alerts", s.handleAlerts)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
		"backend": s.store.Name(),
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	offset, err := intParam(q.Get("offset"), 0, 0, 1<<31-1)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}

	filter := types.SnapshotFilter{Query: q.Get("q"), Limit: limit, Offset: offset}
	if a := q.Get("availability"); a != "" {
		filter.Availability = types.Availability(a).Canonical()
	}
	switch sortBy := q.Get("sort"); sortBy {
	case "", types.SortByIdentifier, types.SortByPrice:
		filter.SortBy = sortBy
	default:
		s.errorResponse(w, http.StatusBadRequest, "sort must be 'identifier' or 'price'")
		return
	}

	snaps, err := s.store.ListSnapshots(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list products", err)
		return
	}
	if snaps == nil {
		snaps = []*types.Snapshot{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"products": snaps,
		"count":    len(snaps),
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := validate.NormalizeIdentifier(chi.URLParam(r, "id"))
	days, err := intParam(r.URL.Query().Get("days"), defaultDays, 1, maxDays)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "days: "+err.Error())
		return
	}

	snap, err := s.store.GetCurrentSnapshot(r.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.internalError(w, "get product", err)
		return
	}

	history, err := s.store.GetHistory(r.Context(), id, s.since(days))
	if err != nil {
		s.internalError(w, "get history", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"product": snap,
		"history": nonNil(history),
	})
}

func (s *Server) handleProductHistory(w http.ResponseWriter, r *http.Request) {
	id := validate.NormalizeIdentifier(chi.URLParam(r, "id"))
	days, err := intParam(r.URL.Query().Get("days"), defaultDays, 1, maxDays)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "days: "+err.Error())
		return
	}
	history, err := s.store.GetHistory(r.Context(), id, s.since(days))
	if err != nil {
		s.internalError(w, "get history", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"identifier": id,
		"days":       days,
		"history":    nonNil(history),
	})
}

func (s *Server) handleHistorySeries(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id := validate.NormalizeIdentifier(part); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "ids is required")
		return
	}
	if len(ids) > maxSeries {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("at most %d ids are allowed", maxSeries))
		return
	}
	days, err := intParam(r.URL.Query().Get("days"), defaultDays, 1, maxDays)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "days: "+err.Error())
		return
	}

	series, err := s.store.HistorySeries(r.Context(), ids, s.since(days))
	if err != nil {
		s.internalError(w, "history series", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"days":   days,
		"series": series,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), defaultDailyDays, 1, maxDays)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "days: "+err.Error())
		return
	}
	summary, err := s.store.DailySummary(r.Context(), s.since(days))
	if err != nil {
		s.internalError(w, "daily summary", err)
		return
	}
	if summary == nil {
		summary = []types.DailySummary{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"days":    days,
		"summary": summary,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	threshold := s.cfg.Monitor.AlertThresholdPct
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			s.errorResponse(w, http.StatusBadRequest, "threshold must be a non-negative number")
			return
		}
		threshold = t
	}

	alerts, err := monitor.PriceAlerts(r.Context(), s.store, threshold, s.cfg.Monitor.AlertWindow, s.now())
	if err != nil {
		s.internalError(w, "alerts", err)
		return
	}
	if alerts == nil {
		alerts = []types.PriceAlert{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"threshold_pct": threshold,
		"alerts":        alerts,
	})
}

func (s *Server) since(days int) time.Time {
	return s.now().Add(-time.Duration(days) * 24 * time.Hour)
}

func intParam(raw string, def, min, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if n < min || n > max {
		return 0, fmt.Errorf("must be between %d and %d", min, max)
	}
	return n, nil
}

func nonNil(h []types.HistoryPoint) []types.HistoryPoint {
	if h == nil {
		return []types.HistoryPoint{}
	}
	return h
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}
