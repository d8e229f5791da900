// Package api exposes the coordination core over HTTP and SSE. The
// handlers are a thin boundary: decode, call the owning component, map
// the error taxonomy to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/config"
	"github.com/fleetbite/galley/pkg/engine"
	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/gateway"
	"github.com/fleetbite/galley/pkg/inventory"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/manager"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/queue"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	manager  *manager.Manager
	engine   *engine.Engine
	queue    *queue.Queue
	gateway  *gateway.Gateway
	ledger   *inventory.Ledger
	registry *events.Registry
	logger   zerolog.Logger

	httpServer *http.Server
}

// NewServer wires the API over the given components.
func NewServer(cfg *config.Config, store storage.Store, mgr *manager.Manager,
	eng *engine.Engine, q *queue.Queue, gw *gateway.Gateway,
	ledger *inventory.Ledger, registry *events.Registry) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		manager:  mgr,
		engine:   eng,
		queue:    q,
		gateway:  gw,
		ledger:   ledger,
		registry: registry,
		logger:   log.WithComponent("api"),
	}
}

// Start begins serving. Blocks until the listener fails or Stop is
// called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.routes(mux)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	// Public: auth, customer submission, payment provider callback, the
	// customer-facing event stream.
	mux.HandleFunc("POST /v1/login", s.instrument("login", s.handleLogin))
	mux.HandleFunc("POST /v1/shifts/{shift}/orders", s.instrument("submit_order", s.handleSubmitOrder))
	mux.HandleFunc("POST /v1/webhooks/payment", s.instrument("payment_webhook", s.handlePaymentWebhook))
	mux.HandleFunc("GET /v1/shifts/{shift}/events", s.handleEvents)

	// Staff endpoints behind bearer auth.
	mux.HandleFunc("POST /v1/shifts", s.auth(s.instrument("checkin", s.handleCheckIn)))
	mux.HandleFunc("GET /v1/shifts/{shift}", s.auth(s.instrument("get_shift", s.handleGetShift)))
	mux.HandleFunc("POST /v1/shifts/{shift}/pause", s.auth(s.instrument("pause", s.handlePause)))
	mux.HandleFunc("POST /v1/shifts/{shift}/resume", s.auth(s.instrument("resume", s.handleResume)))
	mux.HandleFunc("PUT /v1/shifts/{shift}/config", s.auth(s.instrument("update_config", s.handleUpdateConfig)))
	mux.HandleFunc("POST /v1/shifts/{shift}/checkout", s.auth(s.instrument("checkout", s.handleCheckout)))
	mux.HandleFunc("GET /v1/shifts/{shift}/queue", s.auth(s.instrument("kds_queue", s.handleQueue)))
	mux.HandleFunc("GET /v1/shifts/{shift}/inventory", s.auth(s.instrument("list_inventory", s.handleListInventory)))
	mux.HandleFunc("POST /v1/shifts/{shift}/inventory/{item}/adjust", s.auth(s.instrument("adjust_inventory", s.handleAdjustInventory)))
	mux.HandleFunc("POST /v1/shifts/{shift}/inventory/{item}/sold-out", s.auth(s.instrument("sold_out", s.handleSoldOut)))
	mux.HandleFunc("POST /v1/shifts/{shift}/orders/advance-ready", s.auth(s.instrument("advance_ready", s.handleAdvanceReady)))
	mux.HandleFunc("POST /v1/shifts/{shift}/sim-order", s.auth(s.instrument("sim_order", s.handleSimOrder)))
	mux.HandleFunc("POST /v1/orders/{order}/advance", s.auth(s.instrument("advance_order", s.handleAdvance)))
	mux.HandleFunc("POST /v1/orders/{order}/hold", s.auth(s.instrument("hold_order", s.handleHold)))
	mux.HandleFunc("POST /v1/orders/{order}/resume", s.auth(s.instrument("resume_order", s.handleResumeOrder)))
	mux.HandleFunc("POST /v1/orders/{order}/cancel", s.auth(s.instrument("cancel_order", s.handleCancel)))
	mux.HandleFunc("GET /v1/orders/{order}", s.auth(s.instrument("get_order", s.handleGetOrder)))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /healthz", metrics.LivenessHandler())
}

// auth requires a valid staff session token.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		if _, err := s.manager.Tokens().ValidateToken(header[len(prefix):]); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next(w, r)
	}
}

// instrument records request count and latency per route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrThrottled),
		errors.Is(err, types.ErrInsufficientStock),
		errors.Is(err, types.ErrStockUnavailable):
		status = http.StatusConflict
	case errors.Is(err, types.ErrShiftNotActive):
		status = http.StatusGone
	case errors.Is(err, manager.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
