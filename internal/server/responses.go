package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexisync/lexisync/internal/auth"
	"github.com/lexisync/lexisync/internal/services"
)

// Machine-readable error kinds. Clients branch on kind; the message is for
// humans and logs only.
const (
	KindValidation           = "validation"
	KindUnauthenticated      = "unauthenticated"
	KindInvalidCredentials   = "invalid_credentials"
	KindSessionExpired       = "session_expired"
	KindAccountExists        = "account_exists"
	KindEmailExists          = "email_exists"
	KindUnknownAccount       = "unknown_account"
	KindUnsupportedKeyType   = "unsupported_key_type"
	KindAudienceMismatch     = "audience_mismatch"
	KindAssertionExpired     = "assertion_expired"
	KindAssertionNotYetValid = "assertion_not_yet_valid"
	KindPurposeMismatch      = "purpose_mismatch"
	KindMalformedRecord      = "malformed_record"
	KindRateLimited          = "rate_limited"
	KindInternal             = "internal"
)

type errorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorBody{Kind: kind, Error: message})
}

// respondServiceError translates service and assertion failures into the
// wire error taxonomy. Anything unmapped is an internal error; its detail
// stays in the logs, not the response.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, auth.ErrInvalidKey):
		respondError(w, http.StatusBadRequest, KindValidation, err.Error())
	case errors.Is(err, auth.ErrUnsupportedKeyType):
		respondError(w, http.StatusBadRequest, KindUnsupportedKeyType, err.Error())
	case errors.Is(err, auth.ErrAudienceMismatch):
		respondError(w, http.StatusUnauthorized, KindAudienceMismatch, err.Error())
	case errors.Is(err, auth.ErrAssertionExpired):
		respondError(w, http.StatusUnauthorized, KindAssertionExpired, err.Error())
	case errors.Is(err, auth.ErrAssertionNotYetValid):
		respondError(w, http.StatusUnauthorized, KindAssertionNotYetValid, err.Error())
	case errors.Is(err, auth.ErrPurposeMismatch):
		respondError(w, http.StatusUnauthorized, KindPurposeMismatch, err.Error())
	case errors.Is(err, auth.ErrInvalidAssertion), errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, KindInvalidCredentials, "invalid credentials")
	case errors.Is(err, services.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, KindUnauthenticated, "authentication required")
	case errors.Is(err, services.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, KindSessionExpired, "session expired")
	case errors.Is(err, services.ErrUnknownAccount):
		respondError(w, http.StatusNotFound, KindUnknownAccount, "unknown account")
	case errors.Is(err, services.ErrAccountExists):
		respondError(w, http.StatusConflict, KindAccountExists, "account already exists")
	case errors.Is(err, services.ErrEmailExists):
		respondError(w, http.StatusConflict, KindEmailExists, "email already bound")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, KindInternal, "internal error")
	}
}
