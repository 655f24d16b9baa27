package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
)

// SyncService merges client-submitted change and deletion batches under
// last-writer-wins and assembles the reply deltas. Malformed records are
// rejected individually; the rest of the batch still applies. Persistence
// errors abort the whole call.
type SyncService struct {
	lists    repositories.ListRepository
	entries  repositories.EntryRepository
	accounts repositories.AccountRepository
	logger   *slog.Logger
}

func NewSyncService(lists repositories.ListRepository, entries repositories.EntryRepository, accounts repositories.AccountRepository, logger *slog.Logger) *SyncService {
	return &SyncService{
		lists:    lists,
		entries:  entries,
		accounts: accounts,
		logger:   logger,
	}
}

// RecordFailure names one rejected record and why it was rejected.
type RecordFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type ListsChangedRequest struct {
	Client string        `json:"client"`
	Since  *time.Time    `json:"since,omitempty"`
	Lists  []models.List `json:"lists"`
}

type ListsChangedResponse struct {
	Delta    map[uuid.UUID]models.List `json:"delta"`
	Deleted  []uuid.UUID               `json:"deleted"`
	Failures []RecordFailure           `json:"failures"`
}

type ListsDeletedRequest struct {
	Client string                 `json:"client"`
	Since  *time.Time             `json:"since,omitempty"`
	Lists  []models.ListTombstone `json:"lists"`
}

type ListsDeletedResponse struct {
	Delta    []uuid.UUID     `json:"delta"`
	Failures []RecordFailure `json:"failures"`
}

type EntriesChangedRequest struct {
	Client  string         `json:"client"`
	Since   *time.Time     `json:"since,omitempty"`
	Entries []models.Entry `json:"entries"`
}

type EntriesChangedResponse struct {
	Delta    map[uuid.UUID]models.Entry `json:"delta"`
	Deleted  []uuid.UUID                `json:"deleted"`
	Failures []RecordFailure            `json:"failures"`
}

type EntriesDeletedRequest struct {
	Client  string                  `json:"client"`
	Since   *time.Time              `json:"since,omitempty"`
	Entries []models.EntryTombstone `json:"entries"`
}

// DeletedEntryRef identifies one tombstoned entry in a deletion delta.
type DeletedEntryRef struct {
	List  uuid.UUID `json:"list"`
	Entry uuid.UUID `json:"entry"`
}

type EntriesDeletedResponse struct {
	Delta    []DeletedEntryRef `json:"delta"`
	Failures []RecordFailure   `json:"failures"`
}

// SyncListsChanged merges a batch of changed lists. Every submitted
// identifier is echoed back with the authoritative post-merge state, either
// in delta or, when a tombstone dominates, in deleted. With since set the
// delta additionally carries every list changed at or after that instant.
func (s *SyncService) SyncListsChanged(ctx context.Context, accountID uuid.UUID, req ListsChangedRequest) (*ListsChangedResponse, error) {
	s.touchLastSeen(ctx, accountID)
	now := time.Now()

	resp := &ListsChangedResponse{
		Delta:    make(map[uuid.UUID]models.List),
		Deleted:  []uuid.UUID{},
		Failures: []RecordFailure{},
	}
	deleted := make(map[uuid.UUID]bool)
	for _, rec := range req.Lists {
		if reason := validateStamp(rec.UUID, rec.Changed, now); reason != "" {
			resp.Failures = append(resp.Failures, RecordFailure{ID: rec.UUID, Error: reason})
			continue
		}
		outcome, stored, err := s.lists.ApplyChanged(ctx, accountID, req.Client, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to apply list change: %w", err)
		}
		switch outcome {
		case repositories.ApplyAccepted, repositories.ApplyStale:
			resp.Delta[stored.UUID] = *stored
		case repositories.ApplyTombstoned:
			if !deleted[rec.UUID] {
				deleted[rec.UUID] = true
				resp.Deleted = append(resp.Deleted, rec.UUID)
			}
		}
	}

	changed, err := s.lists.ChangedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load changed lists: %w", err)
	}
	for _, l := range changed {
		// An identifier already reported as deleted never also appears live.
		if deleted[l.UUID] {
			continue
		}
		if _, ok := resp.Delta[l.UUID]; !ok {
			resp.Delta[l.UUID] = l
		}
	}
	tombs, err := s.lists.DeletedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted lists: %w", err)
	}
	for _, t := range tombs {
		if !deleted[t.ListUUID] {
			deleted[t.ListUUID] = true
			resp.Deleted = append(resp.Deleted, t.ListUUID)
		}
	}
	return resp, nil
}

// SyncListsDeleted tombstones the submitted lists. Unknown identifiers are
// tombstoned too, so deletions propagate even when the server never saw the
// list itself.
func (s *SyncService) SyncListsDeleted(ctx context.Context, accountID uuid.UUID, req ListsDeletedRequest) (*ListsDeletedResponse, error) {
	s.touchLastSeen(ctx, accountID)
	now := time.Now()

	resp := &ListsDeletedResponse{Delta: []uuid.UUID{}, Failures: []RecordFailure{}}
	for _, ts := range req.Lists {
		if reason := validateStamp(ts.ListUUID, ts.DeletedAt, now); reason != "" {
			resp.Failures = append(resp.Failures, RecordFailure{ID: ts.ListUUID, Error: reason})
			continue
		}
		if err := s.lists.ApplyDeleted(ctx, accountID, req.Client, ts); err != nil {
			return nil, fmt.Errorf("failed to apply list deletion: %w", err)
		}
	}

	tombs, err := s.lists.DeletedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted lists: %w", err)
	}
	for _, t := range tombs {
		resp.Delta = append(resp.Delta, t.ListUUID)
	}
	return resp, nil
}

// SyncEntriesChanged merges a batch of changed entries. An entry whose list
// is unknown is rejected per-record; a tombstoned entry or list discards the
// change and reports the entry as deleted.
func (s *SyncService) SyncEntriesChanged(ctx context.Context, accountID uuid.UUID, req EntriesChangedRequest) (*EntriesChangedResponse, error) {
	s.touchLastSeen(ctx, accountID)
	now := time.Now()

	resp := &EntriesChangedResponse{
		Delta:    make(map[uuid.UUID]models.Entry),
		Deleted:  []uuid.UUID{},
		Failures: []RecordFailure{},
	}
	deleted := make(map[uuid.UUID]bool)
	for _, rec := range req.Entries {
		if reason := validateStamp(rec.UUID, rec.Changed, now); reason != "" {
			resp.Failures = append(resp.Failures, RecordFailure{ID: rec.UUID, Error: reason})
			continue
		}
		if rec.ListUUID == uuid.Nil {
			resp.Failures = append(resp.Failures, RecordFailure{ID: rec.UUID, Error: "missing list identifier"})
			continue
		}
		outcome, stored, err := s.entries.ApplyChanged(ctx, accountID, req.Client, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to apply entry change: %w", err)
		}
		switch outcome {
		case repositories.ApplyAccepted, repositories.ApplyStale:
			resp.Delta[stored.UUID] = *stored
		case repositories.ApplyTombstoned:
			if !deleted[rec.UUID] {
				deleted[rec.UUID] = true
				resp.Deleted = append(resp.Deleted, rec.UUID)
			}
		case repositories.ApplyUnknownList:
			resp.Failures = append(resp.Failures, RecordFailure{ID: rec.UUID, Error: "unknown list"})
		}
	}

	changed, err := s.entries.ChangedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load changed entries: %w", err)
	}
	for _, e := range changed {
		// An identifier already reported as deleted never also appears live.
		if deleted[e.UUID] {
			continue
		}
		if _, ok := resp.Delta[e.UUID]; !ok {
			resp.Delta[e.UUID] = e
		}
	}
	tombs, err := s.entries.DeletedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted entries: %w", err)
	}
	for _, t := range tombs {
		if !deleted[t.EntryUUID] {
			deleted[t.EntryUUID] = true
			resp.Deleted = append(resp.Deleted, t.EntryUUID)
		}
	}
	return resp, nil
}

// SyncEntriesDeleted tombstones the submitted entries. The owning list does
// not need to exist anymore.
func (s *SyncService) SyncEntriesDeleted(ctx context.Context, accountID uuid.UUID, req EntriesDeletedRequest) (*EntriesDeletedResponse, error) {
	s.touchLastSeen(ctx, accountID)
	now := time.Now()

	resp := &EntriesDeletedResponse{Delta: []DeletedEntryRef{}, Failures: []RecordFailure{}}
	for _, ts := range req.Entries {
		if reason := validateStamp(ts.EntryUUID, ts.DeletedAt, now); reason != "" {
			resp.Failures = append(resp.Failures, RecordFailure{ID: ts.EntryUUID, Error: reason})
			continue
		}
		if err := s.entries.ApplyDeleted(ctx, accountID, req.Client, ts); err != nil {
			return nil, fmt.Errorf("failed to apply entry deletion: %w", err)
		}
	}

	tombs, err := s.entries.DeletedSince(ctx, accountID, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted entries: %w", err)
	}
	for _, t := range tombs {
		resp.Delta = append(resp.Delta, DeletedEntryRef{List: t.ListUUID, Entry: t.EntryUUID})
	}
	return resp, nil
}

// validateStamp rejects records with no identifier, no timestamp, or a
// timestamp from the future. Client clocks are untrusted; accepting a future
// changed time would let one device shadow everyone else's edits.
func validateStamp(id uuid.UUID, stamp, now time.Time) string {
	if id == uuid.Nil {
		return "missing identifier"
	}
	if stamp.IsZero() {
		return "missing timestamp"
	}
	if stamp.After(now) {
		return "timestamp is in the future"
	}
	return ""
}

func (s *SyncService) touchLastSeen(ctx context.Context, accountID uuid.UUID) {
	if err := s.accounts.TouchLastSeen(ctx, accountID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to touch last seen", "account", accountID, "error", err)
	}
}
