package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
)

// SessionService issues and validates opaque session tokens. Tokens carry no
// state themselves; everything lives in the session store so revocation is
// immediate across devices.
type SessionService struct {
	sessions repositories.SessionRepository
	ttl      time.Duration
}

func NewSessionService(sessions repositories.SessionRepository, ttl time.Duration) *SessionService {
	return &SessionService{sessions: sessions, ttl: ttl}
}

func (s *SessionService) Issue(ctx context.Context, accountID uuid.UUID) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Validate resolves a token to its session. Unknown tokens and expired
// sessions are reported separately; an expired session is removed on sight.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.sessions.GetByID(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RevokeAll drops every live session for an account, e.g. after a key is
// suspected compromised.
func (s *SessionService) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	if err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
