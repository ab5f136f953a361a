// Package server exposes the pipeline and the record store over HTTP for the
// browser extension and the dashboard.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gzhole/promptshield/internal/pipeline"
	"github.com/gzhole/promptshield/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	defaultLogLimit = 100
	maxLogLimit     = 1000
	shutdownTimeout = 5 * time.Second
)

// Server wraps the API router.
type Server struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	origins  []string
	log      zerolog.Logger
	router   *mux.Router
}

// New builds the router. origins lists the CORS origins allowed to call the
// API; a trailing * matches any suffix.
func New(p *pipeline.Pipeline, st store.Store, origins []string, log zerolog.Logger) *Server {
	s := &Server{
		pipeline: p,
		store:    st,
		origins:  origins,
		log:      log.With().Str("component", "server").Logger(),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/log", s.handleLog).Methods(http.MethodPost)
	api.HandleFunc("/log/analytics/risk", s.handleRiskDistribution).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.handleListLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs/{id}", s.handleGetLog).Methods(http.MethodGet)
	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/submit/{ticket}", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/unmask", s.handleUnmask).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Use(s.accessLog)
}

// Handler returns the API handler with CORS applied. CORS wraps the router so
// preflight requests are answered before method matching.
func (s *Server) Handler() http.Handler { return s.cors(s.router) }

// Start serves the API on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.log.Info().Str("addr", addr).Msg("api listening")
	return serve(ctx, &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	})
}

// StartMetrics serves /metrics on addr until ctx is cancelled.
func StartMetrics(ctx context.Context, addr string) error {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	return serve(ctx, &http.Server{
		Addr:              addr,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	})
}

func serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
		if prefix, ok := strings.CutSuffix(o, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
