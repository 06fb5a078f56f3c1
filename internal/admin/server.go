// JSON admin API over a running Simulator.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"droneresponse/internal/geofence"
	"droneresponse/internal/mission"
	"droneresponse/internal/safety"
	"droneresponse/internal/sim"
	"droneresponse/internal/telemetry"
)

// Server exposes fleet, mission, incident, geofence, and weather controls
// over HTTP.
type Server struct {
	Sim *sim.Simulator
	mux *http.ServeMux
}

// NewServer builds a Server around a Simulator.
func NewServer(s *sim.Simulator) *Server {
	srv := &Server{Sim: s, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /missions", s.handleMissions)
	s.mux.HandleFunc("GET /missions/{id}", s.handleMission)
	s.mux.HandleFunc("GET /missions/{id}/timeline", s.handleTimeline)
	s.mux.HandleFunc("GET /fleet", s.handleFleet)
	s.mux.HandleFunc("GET /telemetry", s.handleTelemetry)
	s.mux.HandleFunc("GET /incidents", s.handleIncidents)
	s.mux.HandleFunc("POST /incidents", s.handleReportIncident)
	s.mux.HandleFunc("DELETE /incidents/{id}", s.handleCancelIncident)
	s.mux.HandleFunc("GET /geofences", s.handleGeofences)
	s.mux.HandleFunc("POST /geofences", s.handleAddGeofence)
	s.mux.HandleFunc("DELETE /geofences/{id}", s.handleRemoveGeofence)
	s.mux.HandleFunc("GET /weather", s.handleWeather)
	s.mux.HandleFunc("POST /weather", s.handleSetWeather)
	s.mux.HandleFunc("GET /policy", s.handlePolicy)
	s.mux.HandleFunc("POST /policy", s.handleSetPolicy)
	s.mux.HandleFunc("POST /toggle-chaos", s.handleToggleChaos)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves the admin API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.mux}
	errCh := make(chan error, 1)
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin shutdown", "err", err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Missions())
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.Sim.Mission(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, mission.ErrMissionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := s.Sim.Timeline(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, mission.ErrMissionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Fleet())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.TelemetrySnapshot())
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Incidents())
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	var inc telemetry.Incident
	if err := json.NewDecoder(r.Body).Decode(&inc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if inc.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "incident type required"})
		return
	}
	created := s.Sim.ReportIncident(inc)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCancelIncident(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.CancelIncident(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGeofences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Zones())
}

func (s *Server) handleAddGeofence(w http.ResponseWriter, r *http.Request) {
	var z geofence.Zone
	if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Sim.AddZone(z); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (s *Server) handleRemoveGeofence(w http.ResponseWriter, r *http.Request) {
	s.Sim.RemoveZone(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.WeatherSnapshot())
}

func (s *Server) handleSetWeather(w http.ResponseWriter, r *http.Request) {
	var wx safety.Weather
	if err := json.NewDecoder(r.Body).Decode(&wx); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.Sim.SetWeather(wx)
	writeJSON(w, http.StatusOK, s.Sim.WeatherSnapshot())
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.PolicySnapshot())
}

func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var p safety.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.Sim.SetPolicy(p)
	writeJSON(w, http.StatusOK, s.Sim.PolicySnapshot())
}

func (s *Server) handleToggleChaos(w http.ResponseWriter, r *http.Request) {
	state := s.Sim.ToggleChaos()
	writeJSON(w, http.StatusOK, map[string]any{"chaos": state})
}
