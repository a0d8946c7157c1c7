package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/services"
)

const maxRequestBody = 4 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are trusted internal dashboards; origin policy is enforced
	// upstream at the ingress.
	CheckOrigin: func(*http.Request) bool { return true },
}

type analyzeRequest struct {
	TeamID    string           `json:"team_id"`
	ProjectID string           `json:"project_id"`
	Preset    string           `json:"preset,omitempty"`
	Messages  []models.Message `json:"messages,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Now       time.Time        `json:"now,omitempty"`
}

type resetRequest struct {
	ProjectID string `json:"project_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project_id is required"))
		return
	}

	result, err := s.service.Analyze(r.Context(), services.AnalyzeParams{
		TeamID:    req.TeamID,
		ProjectID: req.ProjectID,
		Preset:    req.Preset,
		Messages:  req.Messages,
		Limit:     req.Limit,
		Now:       req.Now,
	})
	if err != nil {
		s.logger.Error("analysis failed",
			slog.String("project_id", req.ProjectID),
			slog.Any("error", err))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project_id is required"))
		return
	}

	s.service.ResetSession(req.ProjectID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "project_id": req.ProjectID})
}

func (s *Server) handleWindows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"windows": s.service.Windows()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.notifier != nil {
		payload["subscribers"] = s.notifier.Subscribers()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		writeError(w, http.StatusNotImplemented, errors.New("push delivery disabled"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	s.notifier.Attach(conn, r.URL.Query().Get("project_id"))
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
