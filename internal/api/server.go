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

	"github.com/orderline-io/orderline/internal/logbuf"
	"github.com/orderline-io/orderline/internal/menu"
	"github.com/orderline-io/orderline/internal/session"
	"github.com/orderline-io/orderline/internal/store"
	"github.com/orderline-io/orderline/pkg/protocol"
)

// LogQuerier abstracts log entry querying to avoid coupling to logbuf directly.
type LogQuerier interface {
	Query(since time.Time, minLevel slog.Level, limit int) []logbuf.Entry
	QueryCall(callID string, limit int) []logbuf.Entry
}

// CallService is the interface the API server needs from the call engine.
type CallService interface {
	Sessions() []session.Info
	ListCalls(ctx context.Context, filter store.Filter) ([]*protocol.CallRecord, error)
	GetCall(ctx context.Context, callID string) (*protocol.CallRecord, error)
	CountCalls(ctx context.Context, filter store.Filter) (int, error)
	Menu(ctx context.Context) (*protocol.Menu, error)
}

// Service is the standard CallService wiring over the live components.
type Service struct {
	Manager *session.Manager
	Store   store.Store
	Menus   menu.Provider
}

func (s *Service) Sessions() []session.Info { return s.Manager.Sessions() }

func (s *Service) ListCalls(ctx context.Context, filter store.Filter) ([]*protocol.CallRecord, error) {
	return s.Store.ListCalls(ctx, filter)
}

func (s *Service) GetCall(ctx context.Context, callID string) (*protocol.CallRecord, error) {
	return s.Store.GetCall(ctx, callID)
}

func (s *Service) CountCalls(ctx context.Context, filter store.Filter) (int, error) {
	return s.Store.CountCalls(ctx, filter)
}

func (s *Service) Menu(ctx context.Context) (*protocol.Menu, error) {
	return s.Menus.Snapshot(ctx)
}

// RouteRegistrar lets other components (the telephony webhooks) mount
// routes on the server's mux.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth on /api routes
}

// Server is the orderline HTTP server: admin API, event stream, and any
// registered webhook routes.
type Server struct {
	svc    CallService
	cfg    Config
	logger *slog.Logger
	logs   LogQuerier
	hub    *Hub
	srv    *http.Server
}

// NewServer creates the HTTP server. logs and hub may be nil.
func NewServer(svc CallService, cfg Config, logger *slog.Logger, logs LogQuerier, hub *Hub, webhooks ...RouteRegistrar) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		logs:   logs,
		hub:    hub,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.requireAuth(s.handleListSessions))
	mux.HandleFunc("GET /api/calls", s.requireAuth(s.handleListCalls))
	mux.HandleFunc("GET /api/calls/{id}", s.requireAuth(s.handleGetCall))
	mux.HandleFunc("GET /api/calls/{id}/logs", s.requireAuth(s.handleGetCallLogs))
	mux.HandleFunc("GET /api/menu", s.requireAuth(s.handleGetMenu))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	if hub != nil {
		mux.HandleFunc("GET /api/events", s.requireAuth(hub.handleWS))
	}
	for _, wh := range webhooks {
		wh.Register(mux)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("http server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":          "ok",
		"active_sessions": len(s.svc.Sessions()),
	}
	if n, err := s.svc.CountCalls(r.Context(), store.Filter{}); err == nil {
		health["calls_persisted"] = n
	}
	if s.hub != nil {
		health["event_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	infos := s.svc.Sessions()
	if infos == nil {
		infos = []session.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{Limit: 100}
	if status := r.URL.Query().Get("status"); status != "" {
		cs := protocol.CallStatus(status)
		filter.Status = &cs
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = n
		}
	}

	calls, err := s.svc.ListCalls(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if calls == nil {
		calls = []*protocol.CallRecord{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.svc.GetCall(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "call not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Menu(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	minLevel := slog.LevelDebug
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			minLevel = slog.LevelInfo
		case "warn":
			minLevel = slog.LevelWarn
		case "error":
			minLevel = slog.LevelError
		}
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Query(since, minLevel, limit)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetCallLogs serves the buffered log entries for one call, so an
// operator can trace a single conversation without grepping the feed.
func (s *Server) handleGetCallLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries := s.logs.QueryCall(r.PathValue("id"), limit)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
