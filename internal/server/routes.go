package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stephencmorton/feather-sonos/internal/apperrors"
	"github.com/stephencmorton/feather-sonos/internal/sonos"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	snap := s.hub.Snapshot()
	if snap == nil {
		writeError(w, apperrors.NewNotFound("no topology snapshot yet; try POST /v1/rescan"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		writeError(w, apperrors.NewNotFound("device registry disabled"))
		return
	}
	devices, err := s.store.ListDevices()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	snap, err := s.hub.Rescan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// controller resolves the group coordinator from the URL, or writes the
// error and returns nil.
func (s *Server) controller(w http.ResponseWriter, r *http.Request) *sonos.Controller {
	uuid := chi.URLParam(r, "uuid")
	ctrl, err := s.hub.Controller(uuid)
	if err != nil {
		writeError(w, err)
		return nil
	}
	return ctrl
}

func (s *Server) callCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.soapTimeout)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(w, r)
	if ctrl == nil {
		return
	}
	ctx, cancel := s.callCtx(r)
	defer cancel()

	track, err := ctrl.CurrentTrackInfo(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if track == nil {
		writeJSON(w, http.StatusOK, map[string]any{"playing": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playing":      true,
		"title":        track.Title,
		"artist":       track.Artist,
		"album":        track.Album,
		"total_time":   track.TotalTime,
		"current_time": track.CurrentTime,
	})
}

func (s *Server) transportAction(w http.ResponseWriter, r *http.Request, action func(context.Context, *sonos.Controller) error) {
	ctrl := s.controller(w, r)
	if ctrl == nil {
		return
	}
	ctx, cancel := s.callCtx(r)
	defer cancel()

	if err := action(ctx, ctrl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.transportAction(w, r, func(ctx context.Context, c *sonos.Controller) error { return c.Play(ctx) })
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transportAction(w, r, func(ctx context.Context, c *sonos.Controller) error { return c.Pause(ctx) })
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.transportAction(w, r, func(ctx context.Context, c *sonos.Controller) error { return c.Next(ctx) })
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.NewValidationError("body must be JSON with a delta field"))
		return
	}
	if body.Delta == 0 {
		writeError(w, apperrors.NewValidationError("delta must be non-zero"))
		return
	}

	ctrl := s.controller(w, r)
	if ctrl == nil {
		return
	}
	ctx, cancel := s.callCtx(r)
	defer cancel()

	volume, err := ctrl.VolUp(ctx, body.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"volume": volume})
}

func (s *Server) handleURI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI        string `json:"uri"`
		Meta       string `json:"meta"`
		Title      string `json:"title"`
		Start      *bool  `json:"start"`
		ForceRadio bool   `json:"force_radio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.NewValidationError("body must be JSON"))
		return
	}
	if body.URI == "" {
		writeError(w, apperrors.NewValidationError("uri is required"))
		return
	}

	ctrl := s.controller(w, r)
	if ctrl == nil {
		return
	}
	ctx, cancel := s.callCtx(r)
	defer cancel()

	start := true
	if body.Start != nil {
		start = *body.Start
	}
	err := ctrl.PlayURI(ctx, body.URI, sonos.PlayURIOptions{
		Meta:       body.Meta,
		Title:      body.Title,
		Start:      start,
		ForceRadio: body.ForceRadio,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
