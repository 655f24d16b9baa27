package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	account, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, account)
}

type loginKeyRequest struct {
	Iss   uuid.UUID `json:"iss"`
	Proof string    `json:"proof"`
}

func (s *Server) handleLoginKey(w http.ResponseWriter, r *http.Request) {
	var req loginKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	if req.Iss == uuid.Nil || req.Proof == "" {
		respondError(w, http.StatusBadRequest, KindValidation, "iss and proof are required")
		return
	}
	session, err := s.accounts.LoginWithKey(r.Context(), req.Iss, req.Proof)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, session.ID, session.ExpiresAt)
	w.WriteHeader(http.StatusNoContent)
}

type loginPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLoginPassword(w http.ResponseWriter, r *http.Request) {
	var req loginPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, KindValidation, "email and password are required")
		return
	}
	session, err := s.accounts.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, session.ID, session.ExpiresAt)
	respondJSON(w, http.StatusOK, map[string]string{"session": session.ID})
}

func (s *Server) handleBindPassword(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req loginPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	if err := s.accounts.BindPassword(r.Context(), session.AccountID, req.Email, req.Password); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), sessionToken(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	account, err := s.accounts.Info(r.Context(), session.AccountID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
