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

type PostgresListRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresListRepository(pool *pgxpool.Pool) *PostgresListRepository {
	return &PostgresListRepository{pool: pool}
}

// applyChangedQuery is a single statement so the changed-timestamp
// compare-and-set cannot race between concurrent devices: the insert is
// guarded against tombstones and the update only wins with a strictly
// greater timestamp.
const applyChangedQuery = `
	INSERT INTO lists (account_id, uuid, name, name_a, name_b, changed, created, client)
	SELECT $1, $2, $3, $4, $5, $6, $7, $8
	WHERE NOT EXISTS (
		SELECT 1 FROM list_tombstones
		WHERE account_id = $1 AND list_uuid = $2
	)
	ON CONFLICT (account_id, uuid) DO UPDATE
	SET name = EXCLUDED.name, name_a = EXCLUDED.name_a, name_b = EXCLUDED.name_b,
	    changed = EXCLUDED.changed, client = EXCLUDED.client
	WHERE lists.changed < EXCLUDED.changed`

func (r *PostgresListRepository) ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.List) (ApplyOutcome, *models.List, error) {
	ts, err := r.GetTombstone(ctx, accountID, rec.UUID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, nil, err
	}
	if ts != nil {
		// Tombstoned is terminal; no resurrection.
		return ApplyTombstoned, nil, nil
	}

	tag, err := r.pool.Exec(ctx, applyChangedQuery,
		accountID, rec.UUID, rec.Name, rec.NameA, rec.NameB, rec.Changed, rec.Created, client)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to apply list change: %w", err)
	}

	stored, err := r.Get(ctx, accountID, rec.UUID)
	if errors.Is(err, ErrNotFound) {
		// A concurrent delete won the race.
		return ApplyTombstoned, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}

	if tag.RowsAffected() == 0 {
		return ApplyStale, stored, nil
	}
	return ApplyAccepted, stored, nil
}

func (r *PostgresListRepository) ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.ListTombstone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO list_tombstones (account_id, list_uuid, deleted_at, client)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, list_uuid) DO UPDATE
		SET deleted_at = GREATEST(list_tombstones.deleted_at, EXCLUDED.deleted_at)`,
		accountID, ts.ListUUID, ts.DeletedAt, client)
	if err != nil {
		return fmt.Errorf("failed to record list tombstone: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM lists WHERE account_id = $1 AND uuid = $2`,
		accountID, ts.ListUUID)
	if err != nil {
		return fmt.Errorf("failed to remove deleted list: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit list deletion: %w", err)
	}
	return nil
}

func (r *PostgresListRepository) Get(ctx context.Context, accountID, listID uuid.UUID) (*models.List, error) {
	query := `SELECT uuid, name, name_a, name_b, changed, created
	          FROM lists WHERE account_id = $1 AND uuid = $2`

	var list models.List
	err := r.pool.QueryRow(ctx, query, accountID, listID).Scan(
		&list.UUID, &list.Name, &list.NameA, &list.NameB, &list.Changed, &list.Created)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return &list, nil
}

func (r *PostgresListRepository) GetTombstone(ctx context.Context, accountID, listID uuid.UUID) (*models.ListTombstone, error) {
	query := `SELECT list_uuid, deleted_at
	          FROM list_tombstones WHERE account_id = $1 AND list_uuid = $2`

	var ts models.ListTombstone
	err := r.pool.QueryRow(ctx, query, accountID, listID).Scan(&ts.ListUUID, &ts.DeletedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list tombstone: %w", err)
	}
	return &ts, nil
}

func (r *PostgresListRepository) ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.List, error) {
	query := `SELECT uuid, name, name_a, name_b, changed, created
	          FROM lists WHERE account_id = $1`
	args := []any{accountID}
	if since != nil {
		query += ` AND changed >= $2`
		args = append(args, *since)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed lists: %w", err)
	}
	defer rows.Close()

	var lists []models.List
	for rows.Next() {
		var list models.List
		err := rows.Scan(&list.UUID, &list.Name, &list.NameA, &list.NameB, &list.Changed, &list.Created)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lists: %w", err)
	}
	return lists, nil
}

func (r *PostgresListRepository) DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.ListTombstone, error) {
	query := `SELECT list_uuid, deleted_at
	          FROM list_tombstones WHERE account_id = $1`
	args := []any{accountID}
	if since != nil {
		query += ` AND deleted_at >= $2`
		args = append(args, *since)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query list tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []models.ListTombstone
	for rows.Next() {
		var ts models.ListTombstone
		if err := rows.Scan(&ts.ListUUID, &ts.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan list tombstone: %w", err)
		}
		tombstones = append(tombstones, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating list tombstones: %w", err)
	}
	return tombstones, nil
}
