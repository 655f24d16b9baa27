package server

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/lexisync/lexisync/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token. The same token
// is accepted as an Authorization bearer credential.
const SessionCookieName = "session"

// sessionToken pulls the credential from the request, preferring the cookie.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// requireSession authenticates the request against the session store and puts
// the session on the request context. The raw token is kept alongside so
// logout can revoke exactly the credential that was presented.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		session, err := s.sessions.Validate(r.Context(), token)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext returns the session stored by requireSession. Handlers
// behind that middleware can rely on it being present.
func sessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

// rateLimit caps requests per second across the instance. Disabled when
// requestsPerSecond <= 0.
func rateLimit(requestsPerSecond int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond*2)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, KindRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
