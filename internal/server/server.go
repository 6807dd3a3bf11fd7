// Package server exposes the session over HTTP: upload, editing, export
// and navigation state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stockstudio/internal/asset"
	"stockstudio/internal/fetch"
	"stockstudio/internal/pipeline"
)

// Server is the HTTP front of a stockstudio session.
type Server struct {
	bind     string
	store    *asset.Store
	pipeline *pipeline.Pipeline
	fetcher  *fetch.ImageFetcher

	// baseCtx bounds generation attempts to the server's lifetime instead
	// of the uploading request's.
	baseCtx context.Context

	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// New creates a server bound to bind, serving the given store and pipeline.
func New(bind string, store *asset.Store, pipe *pipeline.Pipeline, fetcher *fetch.ImageFetcher) *Server {
	s := &Server{
		bind:     bind,
		store:    store,
		pipeline: pipe,
		fetcher:  fetcher,
		baseCtx:  context.Background(),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/assets", s.handleUpload)
	s.mux.HandleFunc("POST /api/assets/url", s.handleUploadByURL)
	s.mux.HandleFunc("GET /api/assets", s.handleList)
	s.mux.HandleFunc("GET /api/assets/{id}", s.handleGet)
	s.mux.HandleFunc("GET /api/assets/{id}/preview", s.handlePreview)
	s.mux.HandleFunc("POST /api/assets/{id}/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("PUT /api/assets/{id}/title", s.handleSetTitle)
	s.mux.HandleFunc("PUT /api/assets/{id}/description", s.handleSetDescription)
	s.mux.HandleFunc("POST /api/assets/{id}/keywords", s.handleAddKeyword)
	s.mux.HandleFunc("DELETE /api/assets/{id}/keywords", s.handleRemoveKeyword)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("PUT /api/session/view", s.handleSetView)
	s.mux.HandleFunc("PUT /api/session/selection", s.handleSetSelection)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully and waits for in-flight generation attempts.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	log.Info().Str("address", listener.Addr().String()).Msg("api server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api server shutdown")
		}
		s.pipeline.Wait()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
