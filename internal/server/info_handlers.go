package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type serverInfo struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`
}

// handleServerInfo publishes the audience identifier clients must target in
// their assertions, together with the server clock so clients can detect
// skew before submitting timestamped records.
func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, serverInfo{
		ID:   s.config.ServerID,
		Time: time.Now().UTC(),
	})
}
