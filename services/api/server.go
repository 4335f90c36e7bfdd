package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sjsage522/classifiedworker/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server exposes the crawl status over HTTP
type Server struct {
	tracker *Tracker
	server  *http.Server
	log     *logger.Logger
}

// NewServer creates a status server listening on addr
func NewServer(addr string, tracker *Tracker) *Server {
	s := &Server{
		tracker: tracker,
		log:     logger.ForAPI(),
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, s.tracker.Snapshot())
	})

	return r
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Status API starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
