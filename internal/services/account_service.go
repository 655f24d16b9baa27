package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/auth"
	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
	"github.com/lexisync/lexisync/internal/utils"
)

// AccountService covers the account lifecycle: registration against a
// self-signed proof of possession, key and password logins, password binding
// and logout.
type AccountService struct {
	accounts repositories.AccountRepository
	sessions *SessionService
	verifier *auth.Verifier
	logger   *slog.Logger
}

func NewAccountService(accounts repositories.AccountRepository, sessions *SessionService, verifier *auth.Verifier, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		sessions: sessions,
		verifier: verifier,
		logger:   logger,
	}
}

// RegisterRequest carries the public key being enrolled plus a proof signed
// by the matching private key.
type RegisterRequest struct {
	Key     string         `json:"key"`
	KeyType models.KeyType `json:"keytype"`
	Proof   string         `json:"proof"`
}

// Register enrolls a new account under the UUID the client minted. The proof
// must verify against the submitted key, so the caller demonstrably holds the
// private half before anything is stored.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	if req.Key == "" || req.Proof == "" {
		return nil, fmt.Errorf("%w: key and proof are required", ErrValidation)
	}
	claims, err := s.verifier.Verify(req.Proof, auth.PurposeRegister, []byte(req.Key), req.KeyType)
	if err != nil {
		return nil, err
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return nil, fmt.Errorf("%w: issuer is not a valid account id", ErrValidation)
	}

	now := time.Now().UTC()
	account := &models.Account{
		UUID:      accountID,
		Name:      claims.Name,
		CreatedAt: now,
		LastSeen:  now,
	}
	if claims.DeleteAfter != nil {
		t := time.Unix(*claims.DeleteAfter, 0).UTC()
		account.DeleteAfter = &t
	}
	key := &models.AccountKey{
		AccountID: accountID,
		AuthKey:   []byte(req.Key),
		KeyType:   req.KeyType,
	}
	if err := s.accounts.Create(ctx, account, key); err != nil {
		if errors.Is(err, repositories.ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered", "account", accountID, "key_type", req.KeyType)
	return account, nil
}

// LoginWithKey verifies a login proof against the key stored for the account
// and issues a session. Signature failures and issuer mismatches collapse
// into ErrInvalidCredentials.
func (s *AccountService) LoginWithKey(ctx context.Context, accountID uuid.UUID, proof string) (*models.Session, error) {
	key, err := s.accounts.GetKey(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, fmt.Errorf("failed to get account key: %w", err)
	}
	claims, err := s.verifier.Verify(proof, auth.PurposeLogin, key.AuthKey, key.KeyType)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAssertion) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	issuer, err := claims.AccountID()
	if err != nil || issuer != accountID {
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.TouchLastSeen(ctx, accountID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to touch last seen", "account", accountID, "error", err)
	}
	return s.sessions.Issue(ctx, accountID)
}

// BindPassword attaches an email/password credential to an already
// authenticated account. One login per account, one account per email.
func (s *AccountService) BindPassword(ctx context.Context, accountID uuid.UUID, email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	login := &models.AccountLogin{
		AccountID:    accountID,
		Email:        email,
		PasswordHash: hash,
		Verified:     false,
	}
	if err := s.accounts.BindLogin(ctx, login); err != nil {
		if errors.Is(err, repositories.ErrEmailExists) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to bind login: %w", err)
	}
	s.logger.Info("password bound", "account", accountID)
	return nil
}

// LoginWithPassword authenticates by email and password. Unknown emails and
// wrong passwords produce the same error.
func (s *AccountService) LoginWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	login, err := s.accounts.GetLoginByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get login: %w", err)
	}
	if !utils.CheckPassword(login.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.TouchLastSeen(ctx, login.AccountID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to touch last seen", "account", login.AccountID, "error", err)
	}
	return s.sessions.Issue(ctx, login.AccountID)
}

func (s *AccountService) Info(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
