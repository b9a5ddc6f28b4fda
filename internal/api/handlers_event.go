package api

import (
	"net/http"

	"github.com/pixel-backend/internal/service"
)

// handleIngestEvent stores one web pixel event.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}

	event, err := s.eventService.Ingest(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         event.ID,
		"event_name": event.EventName,
	})
}
