// Package api exposes the collector's readings and temperature boundary
// over HTTP JSON, plus a small chart view of the level history.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kiniou-labs/level.report/internal/db"
	"github.com/kiniou-labs/level.report/internal/httputil"
	"github.com/kiniou-labs/level.report/internal/monitoring"
	"github.com/kiniou-labs/level.report/internal/units"
)

// TemperatureSink receives external ambient temperature reports; the
// pipeline monitor implements it.
type TemperatureSink interface {
	UpdateTemperature(celsius float64)
}

// DeviceCommander is the optional serial path for forwarding temperature
// reports to the sensor bridge.
type DeviceCommander interface {
	SendCommand(command string) error
}

// Server handles the collector's HTTP API.
type Server struct {
	store     *db.DB
	temps     TemperatureSink
	bridge    DeviceCommander // may be nil when no device is attached
	sessionID string
}

// NewServer creates an API server over the given store and temperature
// sink. bridge may be nil; temperature reports are then kept host-side
// only.
func NewServer(store *db.DB, temps TemperatureSink, bridge DeviceCommander, sessionID string) *Server {
	return &Server{
		store:     store,
		temps:     temps,
		bridge:    bridge,
		sessionID: sessionID,
	}
}

// ServeMux returns the routed API handlers.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/readings/latest", s.handleLatestReading)
	mux.HandleFunc("/readings", s.handleReadings)
	mux.HandleFunc("/temperature", s.handleTemperature)
	mux.HandleFunc("/charts/level", s.handleLevelChart)
	return mux
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	reading, err := s.store.LatestReading()
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteJSONError(w, http.StatusNotFound, "no readings recorded yet")
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSONOK(w, convertUnits(r, *reading))
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "since must be RFC3339")
			return
		}
		since = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	readings, err := s.store.ReadingsSince(since, limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if readings == nil {
		readings = []db.StoredReading{}
	}
	httputil.WriteJSONOK(w, readings)
}

// temperatureReport is the POST /temperature payload.
type temperatureReport struct {
	Celsius float64 `json:"celsius"`
	Source  string  `json:"source,omitempty"`
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		temp, err := s.store.LatestTemperature()
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteJSONError(w, http.StatusNotFound, "no temperature recorded yet")
			return
		}
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSONOK(w, temp)

	case http.MethodPost:
		var report temperatureReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			httputil.BadRequest(w, "invalid JSON body")
			return
		}
		if report.Source == "" {
			report.Source = "api"
		}

		s.temps.UpdateTemperature(report.Celsius)

		if err := s.store.RecordTemperature(s.sessionID, report.Celsius, report.Source); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// Best effort: a detached bridge is not an API failure.
		if s.bridge != nil {
			command := "T=" + strconv.FormatFloat(report.Celsius, 'f', 1, 64)
			if err := s.bridge.SendCommand(command); err != nil {
				monitoring.Logf("failed to forward temperature to bridge: %v", err)
			}
		}

		httputil.WriteJSONOK(w, report)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// convertUnits applies the optional ?units= and ?volume_units= queries to a
// reading. The database always stores centimeters and liters; the fill
// percentage is dimensionless and never converted.
func convertUnits(r *http.Request, reading db.StoredReading) db.StoredReading {
	if target := r.URL.Query().Get("units"); target != "" && target != units.CM && units.IsValid(target) {
		reading.RawMin = units.ConvertLength(reading.RawMin, target)
		reading.RawMax = units.ConvertLength(reading.RawMax, target)
		reading.TrimmedMin = units.ConvertLength(reading.TrimmedMin, target)
		reading.TrimmedMax = units.ConvertLength(reading.TrimmedMax, target)
		reading.TrimmedMean = units.ConvertLength(reading.TrimmedMean, target)
		reading.Smoothed = units.ConvertLength(reading.Smoothed, target)
		reading.UsefulLevel = units.ConvertLength(reading.UsefulLevel, target)
	}
	if target := r.URL.Query().Get("volume_units"); target != "" {
		reading.VolumeLiters = units.ConvertVolume(reading.VolumeLiters, target)
	}
	return reading
}
