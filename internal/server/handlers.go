package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Current(r.Context())
	if err != nil {
		s.internalError(w, r, "score live reading", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	reading, err := vitals.Decode(body)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.svc.Process(r.Context(), reading)
	switch {
	case errors.Is(err, vitals.ErrInvalidReading):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case err != nil:
		s.internalError(w, r, "score submitted reading", err)
	default:
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.History(r.Context()))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		zap.Error(err),
		zap.String("request_id", RequestID(r.Context())),
	)
	s.writeError(w, r, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
