// Package memory provides in-memory implementations of the repository
// interfaces. They mirror the Postgres/Redis semantics and back the
// service tests and local development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
)

type AccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]models.Account
	keys     map[uuid.UUID]models.AccountKey
	logins   map[string]models.AccountLogin
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[uuid.UUID]models.Account),
		keys:     make(map[uuid.UUID]models.AccountKey),
		logins:   make(map[string]models.AccountLogin),
	}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account, key *models.AccountKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.UUID]; ok {
		return repositories.ErrAccountExists
	}
	now := time.Now()
	account.CreatedAt = now
	account.LastSeen = now
	s.accounts[account.UUID] = *account
	s.keys[account.UUID] = *key
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &account, nil
}

func (s *AccountStore) GetKey(ctx context.Context, id uuid.UUID) (*models.AccountKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &key, nil
}

func (s *AccountStore) BindLogin(ctx context.Context, login *models.AccountLogin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logins[login.Email]; ok {
		return repositories.ErrEmailExists
	}
	for _, existing := range s.logins {
		if existing.AccountID == login.AccountID {
			return repositories.ErrEmailExists
		}
	}
	s.logins[login.Email] = *login
	return nil
}

func (s *AccountStore) GetLoginByEmail(ctx context.Context, email string) (*models.AccountLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	login, ok := s.logins[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &login, nil
}

func (s *AccountStore) TouchLastSeen(ctx context.Context, id uuid.UUID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	account.LastSeen = t
	s.accounts[id] = account
	return nil
}
