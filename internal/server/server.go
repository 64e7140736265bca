// Package server exposes the hub over HTTP: topology queries, group
// control, the device registry, and a websocket event stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/stephencmorton/feather-sonos/internal/apperrors"
	"github.com/stephencmorton/feather-sonos/internal/config"
	"github.com/stephencmorton/feather-sonos/internal/hub"
	"github.com/stephencmorton/feather-sonos/internal/registry"
	"github.com/stephencmorton/feather-sonos/internal/sonos"
)

// Hub is the subset of hub behavior the HTTP layer depends on.
type Hub interface {
	Snapshot() *hub.Snapshot
	Controller(uuid string) (*sonos.Controller, error)
	Rescan(ctx context.Context) (hub.Snapshot, error)
	Subscribe() (<-chan hub.Snapshot, func())
}

// Server wires the hub and registry into an HTTP handler.
type Server struct {
	hub         Hub
	store       *registry.Store
	soapTimeout time.Duration
}

// NewHandler builds the chi router for the daemon.
func NewHandler(cfg config.Config, h Hub, store *registry.Store) http.Handler {
	s := &Server{
		hub:         h,
		store:       store,
		soapTimeout: time.Duration(cfg.SoapTimeoutMs) * time.Millisecond,
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	router.Get("/healthz", s.handleHealth)

	router.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(cfg.JWTSecret))

		r.Get("/groups", s.handleGroups)
		r.Get("/devices", s.handleDevices)
		r.Post("/rescan", s.handleRescan)
		r.Get("/events", s.handleEvents)

		r.Route("/groups/{uuid}", func(r chi.Router) {
			r.Get("/track", s.handleTrack)
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/next", s.handleNext)
			r.Post("/volume", s.handleVolume)
			r.Post("/uri", s.handleURI)
		})
	})

	return router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.FromError(err)
	writeJSON(w, appErr.StatusCode, map[string]any{"error": appErr.Body()})
}
