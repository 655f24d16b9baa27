package server

import (
	"encoding/json"
	"net/http"

	"github.com/lexisync/lexisync/internal/services"
)

func (s *Server) handleListsChanged(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req services.ListsChangedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	resp, err := s.sync.SyncListsChanged(r.Context(), session.AccountID, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListsDeleted(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req services.ListsDeletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	resp, err := s.sync.SyncListsDeleted(r.Context(), session.AccountID, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEntriesChanged(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req services.EntriesChangedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	resp, err := s.sync.SyncEntriesChanged(r.Context(), session.AccountID, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEntriesDeleted(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req services.EntriesDeletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	resp, err := s.sync.SyncEntriesDeleted(r.Context(), session.AccountID, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
