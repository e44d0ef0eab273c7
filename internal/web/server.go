// Package web serves the reference backend: a JSON API over the SQLite store.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"aetracker/internal/api"
	"aetracker/internal/store"

	"github.com/CAFxX/httpcompression"
)

const maxBodyBytes = 1 << 20

type ServerConfig struct {
	Addr   string
	Logger *slog.Logger
}

type Server struct {
	cfg    ServerConfig
	st     *store.Store
	logger *slog.Logger
}

func NewServer(cfg ServerConfig, st *store.Store) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if st == nil {
		return nil, errors.New("web: store is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{cfg: cfg, st: st, logger: logger}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/aes", s.handleAEList)
	mux.HandleFunc("POST /api/aes", s.handleAECreate)
	mux.HandleFunc("DELETE /api/aes", s.handleAEDelete)
	mux.HandleFunc("POST /api/aes/reconcile-colors", s.handleAEReconcileColors)

	mux.HandleFunc("GET /api/accounts", s.handleAccountList)
	mux.HandleFunc("POST /api/accounts", s.handleAccountCreate)
	mux.HandleFunc("DELETE /api/accounts", s.handleAccountDelete)

	mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	mux.HandleFunc("GET /api/tasks/{id}/description", s.handleTaskDescription)

	var h http.Handler = mux
	if compress, err := httpcompression.DefaultAdapter(); err == nil {
		h = compress(h)
	} else {
		s.logger.Warn("response compression disabled", "err", err)
	}
	return s.logRequests(h)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.st.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "Database unavailable", Detail: err.Error()})
		return
	}
	id, err := s.st.InstanceID(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "Database unavailable", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "instance": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, body api.ErrorResponse) {
	writeJSON(w, status, body)
}

func validationError(issues ...api.Issue) api.ErrorResponse {
	return api.ErrorResponse{Error: "Validation error", Issues: issues}
}

// decodeBody reads a JSON request body into dst. It writes the 400 itself and
// returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponse{Error: "Invalid JSON", Detail: err.Error()})
		return false
	}
	return true
}

// idParam validates an entity id. It writes the 400 itself and returns false
// when the id is not a UUID.
func idParam(w http.ResponseWriter, raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if !store.ValidID(id) {
		writeError(w, http.StatusBadRequest, validationError(api.Issue{Path: "id", Message: "id must be a UUID"}))
		return "", false
	}
	return id, true
}

// writeStoreError maps store errors onto the HTTP error contract.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve       store.ValidationError
		nf       store.NotFoundError
		conflict store.ConflictError
		inUse    store.InUseError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Field == "" {
			writeError(w, http.StatusBadRequest, api.ErrorResponse{Error: ve.Message})
			return
		}
		writeError(w, http.StatusBadRequest, validationError(api.Issue{Path: ve.Field, Message: ve.Message}))
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, api.ErrorResponse{Error: nf.Error()})
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, api.ErrorResponse{Error: conflict.Error()})
	case errors.As(err, &inUse):
		writeError(w, http.StatusConflict, api.ErrorResponse{Error: inUse.Error(), Count: inUse.Count})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error", Detail: err.Error()})
	}
}
