package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/indicator-core/internal/bridges/presentation"
	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/mode"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StateResponse is the indicator state as served by GET /state and sent
// to panels on connect.
type StateResponse struct {
	DeviceID string `json:"device_id"`
	device.State
	WaterStatus mode.WaterStatus `json:"water_status"`
}

// setModeRequest is the body of PUT /modes/{mode}.
type setModeRequest struct {
	On *bool `json:"on"`
}

// modeCommandResponse answers an accepted mode command. State is the
// snapshot at acceptance; the command is applied on the next poll tick.
type modeCommandResponse struct {
	Accepted bool          `json:"accepted"`
	Widget   string        `json:"widget"`
	State    StateResponse `json:"state"`
}

func (s *Server) currentState() StateResponse {
	st := s.state.Snapshot()
	return StateResponse{
		DeviceID:    s.deviceID,
		State:       st,
		WaterStatus: mode.ClassifyWaterLevel(st.WaterLevel, s.thresholds),
	}
}

// handleGetState returns the current indicator state.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

// handleSetMode sets a mode on or off through the panel input queue.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	m, ok := s.modeParam(w, r)
	if !ok {
		return
	}

	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.On == nil {
		writeBadRequest(w, `"on" is required`)
		return
	}

	s.submitWidget(w, presentation.SetWidget(m, *req.On))
}

// handleToggleMode toggles a mode through the panel input queue.
func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	m, ok := s.modeParam(w, r)
	if !ok {
		return
	}
	s.submitWidget(w, presentation.SwitchWidget(m))
}

func (s *Server) modeParam(w http.ResponseWriter, r *http.Request) (device.LightMode, bool) {
	m, err := device.ParseLightMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeNotFound(w, "unknown mode")
		return 0, false
	}
	return m, true
}

// submitWidget queues a press so the controller still sees it from the
// poll loop, then answers 202 with the current snapshot.
func (s *Server) submitWidget(w http.ResponseWriter, widget string) {
	err := s.input.Submit(presentation.TouchEvent{Widget: widget, Source: "api"})
	switch {
	case err == nil:
	case errors.Is(err, presentation.ErrInputQueueFull):
		writeUnavailable(w, "input queue full, retry shortly")
		return
	default:
		writeInternalError(w, "failed to queue command")
		return
	}

	writeJSON(w, http.StatusAccepted, modeCommandResponse{
		Accepted: true,
		Widget:   widget,
		State:    s.currentState(),
	})
}

// handleGetHistory returns recent state changes, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error("loading state history failed", "error", err)
		writeInternalError(w, "failed to load history")
		return
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.deviceID,
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter (default 50, max 200).
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
	}

	return limit, nil
}
