// Package httpapi exposes the set engine and the record store over HTTP,
// for tooling that does not link the Go library.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/helpers"
	"github.com/migadu/msgset/logger"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/metrics"
	"github.com/migadu/msgset/store"
)

// bcryptPrefix marks an API key stored as a bcrypt hash instead of plain
// text.
const bcryptPrefix = "bcrypt:"

// Server is the HTTP API server.
type Server struct {
	addr         string
	apiKey       string
	allowedHosts []string
	records      store.RecordStore
	server       *http.Server
	tls          bool
	tlsCertFile  string
	tlsKeyFile   string
}

// ServerOptions holds configuration for the HTTP API server.
type ServerOptions struct {
	Addr         string
	APIKey       string
	AllowedHosts []string
	TLS          bool
	TLSCertFile  string
	TLSKeyFile   string
}

// New creates an HTTP API server over the given record store.
func New(records store.RecordStore, options ServerOptions) (*Server, error) {
	if options.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the HTTP API server")
	}
	if options.TLS && (options.TLSCertFile == "" || options.TLSKeyFile == "") {
		return nil, fmt.Errorf("TLS certificate and key files are required when TLS is enabled")
	}

	return &Server{
		addr:         options.Addr,
		apiKey:       options.APIKey,
		allowedHosts: options.AllowedHosts,
		records:      records,
		tls:          options.TLS,
		tlsCertFile:  options.TLSCertFile,
		tlsKeyFile:   options.TLSKeyFile,
	}, nil
}

// Start runs the server until ctx is cancelled, reporting a fatal startup
// or serve error on errChan.
func Start(ctx context.Context, records store.RecordStore, options ServerOptions, errChan chan error) {
	server, err := New(records, options)
	if err != nil {
		errChan <- fmt.Errorf("failed to create HTTP API server: %w", err)
		return
	}

	protocol := "HTTP"
	if options.TLS {
		protocol = "HTTPS"
	}
	logger.Info("starting API server", "protocol", protocol, "addr", options.Addr)
	if err := server.start(ctx); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("HTTP API server failed: %w", err)
	}
}

func (s *Server) start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.setupRoutes(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down HTTP API server", "error", err)
		}
	}()

	if s.tls {
		return s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	return s.server.ListenAndServe()
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Unauthenticated endpoints.
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.loggingMiddleware)
	v1.Use(s.allowedHostsMiddleware)
	v1.Use(s.authMiddleware)

	// Pure set engine operations.
	v1.HandleFunc("/sets/encode", s.handleEncode).Methods("POST")
	v1.HandleFunc("/sets/decode", s.handleDecode).Methods("POST")
	v1.HandleFunc("/sets/union", s.handleAlgebra(msgset.Union)).Methods("POST")
	v1.HandleFunc("/sets/intersect", s.handleAlgebra(msgset.Intersect)).Methods("POST")
	v1.HandleFunc("/sets/difference", s.handleAlgebra(msgset.Difference)).Methods("POST")
	v1.HandleFunc("/sets/batch", s.handleBatch).Methods("POST")

	// Record store operations. Keys may contain the mailbox path
	// delimiter, hence the greedy matcher.
	v1.HandleFunc("/records", s.handleListRecords).Methods("GET")
	v1.HandleFunc("/records/{key:.+}", s.handlePutRecord).Methods("PUT")
	v1.HandleFunc("/records/{key:.+}", s.handleGetRecord).Methods("GET")
	v1.HandleFunc("/records/{key:.+}", s.handleDeleteRecord).Methods("DELETE")

	return router
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, fmt.Sprintf("%d", rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		logger.Debug("api request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) allowedHostsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedHosts) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			remoteIP = r.RemoteAddr
		}
		for _, allowed := range s.allowedHosts {
			if remoteIP == allowed {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "host not allowed")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || !s.checkAPIKey(token) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAPIKey(token string) bool {
	if hash, ok := strings.CutPrefix(s.apiKey, bcryptPrefix); ok {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type setRequest struct {
	Scope   string `json:"scope"`
	Mode    string `json:"mode"`
	Compact string `json:"compact"`
}

// parseSet builds a Set from the scope/mode/compact triple used by most
// requests.
func parseSet(scope, mode, compact string) (*msgset.Set, error) {
	normalized, err := helpers.NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	m, err := msgset.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return msgset.Decode(normalized, m, compact)
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []uint64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	for _, id := range req.IDs {
		if id == 0 {
			metrics.CodecOperationsTotal.WithLabelValues("encode", "error").Inc()
			writeError(w, http.StatusBadRequest, "identifiers must be >= 1")
			return
		}
	}

	metrics.CodecOperationsTotal.WithLabelValues("encode", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"compact": msgset.EncodeRanges(req.IDs),
		"count":   len(req.IDs),
	})
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	set, err := parseSet(req.Scope, req.Mode, req.Compact)
	if err != nil {
		metrics.CodecOperationsTotal.WithLabelValues("decode", "error").Inc()
		writeEngineError(w, err)
		return
	}
	if set.IsAll() {
		writeError(w, http.StatusBadRequest, "the full-mailbox set cannot be materialized locally")
		return
	}

	metrics.CodecOperationsTotal.WithLabelValues("decode", "success").Inc()
	n, _ := set.Count()
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":   set.Scope(),
		"mode":    set.Mode().String(),
		"members": set.Members(),
		"count":   n,
	})
}

type algebraRequest struct {
	Scope string `json:"scope"`
	Mode  string `json:"mode"`
	A     string `json:"a"`
	B     string `json:"b"`
}

func (s *Server) handleAlgebra(op func(a, b *msgset.Set) (*msgset.Set, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req algebraRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		opName := "algebra"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				opName = tmpl[strings.LastIndex(tmpl, "/")+1:]
			}
		}

		a, err := parseSet(req.Scope, req.Mode, req.A)
		if err != nil {
			metrics.SetOperationsTotal.WithLabelValues(opName, "error").Inc()
			writeEngineError(w, err)
			return
		}
		b, err := parseSet(req.Scope, req.Mode, req.B)
		if err != nil {
			metrics.SetOperationsTotal.WithLabelValues(opName, "error").Inc()
			writeEngineError(w, err)
			return
		}

		result, err := op(a, b)
		if err != nil {
			metrics.SetOperationsTotal.WithLabelValues(opName, "error").Inc()
			writeEngineError(w, err)
			return
		}

		metrics.SetOperationsTotal.WithLabelValues(opName, "success").Inc()
		n, _ := result.Count()
		writeJSON(w, http.StatusOK, map[string]any{
			"compact": result.CompactString(),
			"count":   n,
		})
	}
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		setRequest
		BatchSize int `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	set, err := parseSet(req.Scope, req.Mode, req.Compact)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	batcher, err := msgset.NewBatcher(set, req.BatchSize)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	chunks := batcher.Chunks()
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		n, _ := chunk.Count()
		metrics.BatchChunksTotal.Inc()
		metrics.BatchChunkSize.Observe(float64(n))
		out = append(out, chunk.CompactString())
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": out})
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var rec msgset.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.records.Put(r.Context(), key, rec); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	rec, err := s.records.Get(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := s.records.Delete(r.Context(), key); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	keys, err := s.records.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// writeEngineError maps engine and store errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consts.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, msgset.ErrInvalidIdentifier),
		errors.Is(err, msgset.ErrInvalidRange),
		errors.Is(err, msgset.ErrMalformedToken),
		errors.Is(err, msgset.ErrMalformedRange),
		errors.Is(err, msgset.ErrIncompatibleSets),
		errors.Is(err, msgset.ErrInvalidBatchSize),
		errors.Is(err, msgset.ErrUnresolvedAll),
		errors.Is(err, consts.ErrInvalidStoreKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, msgset.ErrUnsupportedVersion),
		errors.Is(err, msgset.ErrMalformedRecord),
		errors.Is(err, msgset.ErrChecksumMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		// Scope normalization failures and similar validation errors have
		// no sentinel; treat anything that is not a store failure as a bad
		// request only when it clearly came from input parsing.
		if strings.Contains(err.Error(), "scope") || strings.Contains(err.Error(), "unknown mode") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("internal API error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode API response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
