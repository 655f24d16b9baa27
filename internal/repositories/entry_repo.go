package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexisync/lexisync/internal/models"
)

type PostgresEntryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEntryRepository(pool *pgxpool.Pool) *PostgresEntryRepository {
	return &PostgresEntryRepository{pool: pool}
}

// applyEntryChangedQuery mirrors the guarded single-statement upsert used
// for lists: tombstone and list-existence guards live inside the statement,
// so a concurrent deletion committing after any pre-check can never land a
// live row next to its tombstone.
const applyEntryChangedQuery = `
	INSERT INTO entries (account_id, list_uuid, uuid, tip, changed, client)
	SELECT $1, $2, $3, $4, $5, $6
	WHERE NOT EXISTS (
		SELECT 1 FROM entry_tombstones
		WHERE account_id = $1 AND entry_uuid = $3
	)
	AND NOT EXISTS (
		SELECT 1 FROM list_tombstones
		WHERE account_id = $1 AND list_uuid = $2
	)
	AND EXISTS (
		SELECT 1 FROM lists
		WHERE account_id = $1 AND uuid = $2
	)
	ON CONFLICT (account_id, uuid) DO UPDATE
	SET list_uuid = EXCLUDED.list_uuid, tip = EXCLUDED.tip,
	    changed = EXCLUDED.changed, client = EXCLUDED.client
	WHERE entries.changed < EXCLUDED.changed`

func (r *PostgresEntryRepository) ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.Entry) (ApplyOutcome, *models.Entry, error) {
	// Entry tombstone is terminal.
	if _, err := r.GetTombstone(ctx, accountID, rec.UUID); err == nil {
		return ApplyTombstoned, nil, nil
	} else if !errors.Is(err, ErrNotFound) {
		return 0, nil, err
	}

	// Changes under a deleted list are discarded; under an unknown list
	// they are rejected per record. These reads only classify the outcome;
	// the statement below re-checks them atomically.
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM list_tombstones WHERE account_id = $1 AND list_uuid = $2)`,
		accountID, rec.ListUUID).Scan(&exists)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to check list tombstone: %w", err)
	}
	if exists {
		return ApplyTombstoned, nil, nil
	}
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lists WHERE account_id = $1 AND uuid = $2)`,
		accountID, rec.ListUUID).Scan(&exists)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to check list: %w", err)
	}
	if !exists {
		return ApplyUnknownList, nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, applyEntryChangedQuery,
		accountID, rec.ListUUID, rec.UUID, rec.Tip, rec.Changed, client)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to apply entry change: %w", err)
	}

	accepted := tag.RowsAffected() != 0
	if accepted {
		// Meanings are replaced wholesale with the accepted record.
		_, err = tx.Exec(ctx,
			`DELETE FROM entry_meanings WHERE account_id = $1 AND entry_uuid = $2`,
			accountID, rec.UUID)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to clear meanings: %w", err)
		}
		for i, m := range rec.Meanings {
			_, err = tx.Exec(ctx, `
				INSERT INTO entry_meanings (account_id, entry_uuid, ord, value, is_a)
				VALUES ($1, $2, $3, $4, $5)`,
				accountID, rec.UUID, i, m.Value, m.IsA)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to insert meaning: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to commit entry change: %w", err)
	}

	stored, err := r.Get(ctx, accountID, rec.UUID)
	if errors.Is(err, ErrNotFound) {
		return ApplyTombstoned, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	if !accepted {
		return ApplyStale, stored, nil
	}
	return ApplyAccepted, stored, nil
}

func (r *PostgresEntryRepository) ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.EntryTombstone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO entry_tombstones (account_id, list_uuid, entry_uuid, deleted_at, client)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, entry_uuid) DO UPDATE
		SET deleted_at = GREATEST(entry_tombstones.deleted_at, EXCLUDED.deleted_at)`,
		accountID, ts.ListUUID, ts.EntryUUID, ts.DeletedAt, client)
	if err != nil {
		return fmt.Errorf("failed to record entry tombstone: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM entries WHERE account_id = $1 AND uuid = $2`,
		accountID, ts.EntryUUID)
	if err != nil {
		return fmt.Errorf("failed to remove deleted entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entry deletion: %w", err)
	}
	return nil
}

func (r *PostgresEntryRepository) Get(ctx context.Context, accountID, entryID uuid.UUID) (*models.Entry, error) {
	query := `SELECT list_uuid, uuid, tip, changed
	          FROM entries WHERE account_id = $1 AND uuid = $2`

	var entry models.Entry
	err := r.pool.QueryRow(ctx, query, accountID, entryID).Scan(
		&entry.ListUUID, &entry.UUID, &entry.Tip, &entry.Changed)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	entry.Meanings, err = r.meanings(ctx, accountID, entryID)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresEntryRepository) meanings(ctx context.Context, accountID, entryID uuid.UUID) ([]models.Meaning, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT value, is_a FROM entry_meanings
		WHERE account_id = $1 AND entry_uuid = $2 ORDER BY ord`,
		accountID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meanings: %w", err)
	}
	defer rows.Close()

	var meanings []models.Meaning
	for rows.Next() {
		var m models.Meaning
		if err := rows.Scan(&m.Value, &m.IsA); err != nil {
			return nil, fmt.Errorf("failed to scan meaning: %w", err)
		}
		meanings = append(meanings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meanings: %w", err)
	}
	return meanings, nil
}

func (r *PostgresEntryRepository) GetTombstone(ctx context.Context, accountID, entryID uuid.UUID) (*models.EntryTombstone, error) {
	query := `SELECT list_uuid, entry_uuid, deleted_at
	          FROM entry_tombstones WHERE account_id = $1 AND entry_uuid = $2`

	var ts models.EntryTombstone
	err := r.pool.QueryRow(ctx, query, accountID, entryID).Scan(
		&ts.ListUUID, &ts.EntryUUID, &ts.DeletedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry tombstone: %w", err)
	}
	return &ts, nil
}

func (r *PostgresEntryRepository) ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.Entry, error) {
	// The join keeps entries of deleted lists out of the live view.
	query := `SELECT e.list_uuid, e.uuid, e.tip, e.changed
	          FROM entries e
	          JOIN lists l ON l.account_id = e.account_id AND l.uuid = e.list_uuid
	          WHERE e.account_id = $1`
	args := []any{accountID}
	if since != nil {
		query += ` AND e.changed >= $2`
		args = append(args, *since)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(&entry.ListUUID, &entry.UUID, &entry.Tip, &entry.Changed); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	// Meanings fetched after the scan so the row iterator isn't held open.
	for i := range entries {
		entries[i].Meanings, err = r.meanings(ctx, accountID, entries[i].UUID)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *PostgresEntryRepository) DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.EntryTombstone, error) {
	query := `SELECT list_uuid, entry_uuid, deleted_at
	          FROM entry_tombstones WHERE account_id = $1`
	args := []any{accountID}
	if since != nil {
		query += ` AND deleted_at >= $2`
		args = append(args, *since)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []models.EntryTombstone
	for rows.Next() {
		var ts models.EntryTombstone
		if err := rows.Scan(&ts.ListUUID, &ts.EntryUUID, &ts.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry tombstone: %w", err)
		}
		tombstones = append(tombstones, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry tombstones: %w", err)
	}
	return tombstones, nil
}
