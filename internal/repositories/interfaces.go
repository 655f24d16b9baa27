package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAccountExists = errors.New("account already exists")
	ErrEmailExists   = errors.New("email already bound")
)

// ApplyOutcome reports how a single sync record was merged.
type ApplyOutcome int

const (
	// ApplyAccepted means the record was inserted or replaced the stored one.
	ApplyAccepted ApplyOutcome = iota
	// ApplyStale means the stored record has an equal or newer changed
	// timestamp and was kept.
	ApplyStale
	// ApplyTombstoned means a tombstone dominates the record.
	ApplyTombstoned
	// ApplyUnknownList means the owning list is neither live nor tombstoned
	// (entry changes only).
	ApplyUnknownList
)

type AccountRepository interface {
	// Create persists the account together with its public key; the two
	// succeed or fail as one. Returns ErrAccountExists on identifier reuse.
	Create(ctx context.Context, account *models.Account, key *models.AccountKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetKey(ctx context.Context, id uuid.UUID) (*models.AccountKey, error)
	BindLogin(ctx context.Context, login *models.AccountLogin) error
	GetLoginByEmail(ctx context.Context, email string) (*models.AccountLogin, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, t time.Time) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

type ListRepository interface {
	// ApplyChanged merges one changed record under last-writer-wins and
	// returns the authoritative post-merge state (nil when tombstoned).
	// The timestamp comparison is atomic under concurrent writers.
	ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.List) (ApplyOutcome, *models.List, error)
	// ApplyDeleted records or extends a tombstone (max deletion time wins)
	// and removes any live record. Idempotent.
	ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.ListTombstone) error
	Get(ctx context.Context, accountID, listID uuid.UUID) (*models.List, error)
	GetTombstone(ctx context.Context, accountID, listID uuid.UUID) (*models.ListTombstone, error)
	ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.List, error)
	DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.ListTombstone, error)
}

type EntryRepository interface {
	ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.Entry) (ApplyOutcome, *models.Entry, error)
	// ApplyDeleted tombstones an entry. The owning list does not need to
	// exist; entries may be deleted after their list is gone.
	ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.EntryTombstone) error
	Get(ctx context.Context, accountID, entryID uuid.UUID) (*models.Entry, error)
	GetTombstone(ctx context.Context, accountID, entryID uuid.UUID) (*models.EntryTombstone, error)
	ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.Entry, error)
	DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.EntryTombstone, error)
}
