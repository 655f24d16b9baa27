package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
)

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]models.Session)}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	// Expiry is enforced by the caller; Redis drops the key on its own.
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if session.AccountID == accountID {
			delete(s.sessions, id)
		}
	}
	return nil
}
