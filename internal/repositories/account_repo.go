package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexisync/lexisync/internal/models"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account, key *models.AccountKey) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO accounts (uuid, name, delete_after)
              VALUES ($1, $2, $3)
              RETURNING created_at, last_seen`

	err = tx.QueryRow(ctx, query, account.UUID, account.Name, account.DeleteAfter).
		Scan(&account.CreatedAt, &account.LastSeen)
	if isUniqueViolation(err) {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO account_keys (account_id, auth_key, key_type) VALUES ($1, $2, $3)`,
		account.UUID, key.AuthKey, key.KeyType)
	if err != nil {
		return fmt.Errorf("failed to store account key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit account creation: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT uuid, name, locked, created_at, last_seen, delete_after
	          FROM accounts WHERE uuid = $1`

	var account models.Account
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.UUID, &account.Name, &account.Locked,
		&account.CreatedAt, &account.LastSeen, &account.DeleteAfter)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *PostgresAccountRepository) GetKey(ctx context.Context, id uuid.UUID) (*models.AccountKey, error) {
	query := `SELECT account_id, auth_key, key_type FROM account_keys WHERE account_id = $1`

	var key models.AccountKey
	err := r.pool.QueryRow(ctx, query, id).Scan(&key.AccountID, &key.AuthKey, &key.KeyType)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account key: %w", err)
	}
	return &key, nil
}

func (r *PostgresAccountRepository) BindLogin(ctx context.Context, login *models.AccountLogin) error {
	query := `INSERT INTO account_logins (account_id, email, password_hash, verified)
	          VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query,
		login.AccountID, login.Email, login.PasswordHash, login.Verified)
	if isUniqueViolation(err) {
		return ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("failed to bind login: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetLoginByEmail(ctx context.Context, email string) (*models.AccountLogin, error) {
	query := `SELECT account_id, email, password_hash, verified
	          FROM account_logins WHERE email = $1`

	var login models.AccountLogin
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&login.AccountID, &login.Email, &login.PasswordHash, &login.Verified)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get login: %w", err)
	}
	return &login, nil
}

func (r *PostgresAccountRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, t time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET last_seen = $1 WHERE uuid = $2`, t, id)
	if err != nil {
		return fmt.Errorf("failed to touch last seen: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
