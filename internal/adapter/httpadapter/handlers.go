package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/brevet-tracker/internal/dashboard"
	"github.com/couchcryptid/brevet-tracker/internal/export"
	"github.com/couchcryptid/brevet-tracker/internal/feedcache"
)

const (
	headerContentType = "Content-Type"
	headerStale       = "X-Snapshot-Stale"
	contentTypeJSON   = "application/json"
	contentTypeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleRiders(w http.ResponseWriter, r *http.Request) {
	board, err := s.board.Riders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, board.Stale, board)
}

func (s *Server) handleRider(w http.ResponseWriter, r *http.Request) {
	detail, err := s.board.Rider(r.Context(), r.PathValue("riderNo"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail.Stale, detail)
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.Updates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view.Stale, view)
}

func (s *Server) handleRoute(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, false, map[string]any{"controls": s.board.Route()})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.Weather(r.Context(), r.PathValue("control"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view.Stale, view)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	board, err := s.board.Riders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, contentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
	if board.Stale {
		w.Header().Set(headerStale, "true")
	}
	if err := export.WriteStandings(w, board); err != nil {
		s.logger.Error("write standings", "error", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		s.logger.Warn("manual refresh failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, false, map[string]string{"status": "failed", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, false, map[string]string{"status": "refreshed"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, stale bool, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	if stale {
		w.Header().Set(headerStale, "true")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrRiderNotFound), errors.Is(err, dashboard.ErrUnknownControl):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrWeatherUnavailable), errors.Is(err, feedcache.ErrNoSnapshot):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, false, map[string]string{"error": err.Error()})
}
