package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cwygoda/streamcatcher/internal/domain"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"

	readHeaderTimeout   = 10 * time.Second
	defaultWriteTimeout = 90 * time.Second
)

// Resolver resolves a movie id into a video descriptor.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (*domain.Video, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr string
	// WriteTimeout must exceed the scrape budget or slow misses are cut off.
	WriteTimeout time.Duration
}

// Server is the HTTP adapter for the video service.
type Server struct {
	svc    Resolver
	mux    *http.ServeMux
	server *http.Server
	log    *logrus.Entry
}

// NewServer creates a new HTTP server.
func NewServer(svc Resolver, opts Options, log *logrus.Entry) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
		log: log,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /movie/{id}", s.handleGetMovie)
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := s.log.WithFields(logrus.Fields{
		"request_id": w.Header().Get(RequestIDHeader),
		"tmdb_id":    id,
	})

	video, err := s.svc.Resolve(r.Context(), id)
	if err != nil {
		log.WithError(err).Error("resolve failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Error fetching movie data",
			Details: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, video)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// ServeHTTP tags the request with an id, dispatches it and logs the outcome.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reqID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, reqID)

	rec := &statusRecorder{ResponseWriter: w}
	s.mux.ServeHTTP(rec, r)
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  reqID,
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rec.status,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("http request")
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Port extracts the port from the address.
func (s *Server) Port() int {
	addr := s.server.Addr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		port, _ := strconv.Atoi(addr[idx+1:])
		return port
	}
	return 0
}
