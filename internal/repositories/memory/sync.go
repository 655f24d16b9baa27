package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories"
)

// SyncStore holds lists, entries and tombstones for all accounts behind a
// single mutex, which trivially serializes the compare-and-set merge. It
// implements both ListRepository and EntryRepository.
type SyncStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*accountData
}

type accountData struct {
	lists      map[uuid.UUID]models.List
	listTombs  map[uuid.UUID]models.ListTombstone
	entries    map[uuid.UUID]models.Entry
	entryTombs map[uuid.UUID]models.EntryTombstone
}

func NewSyncStore() *SyncStore {
	return &SyncStore{accounts: make(map[uuid.UUID]*accountData)}
}

func (s *SyncStore) account(id uuid.UUID) *accountData {
	data, ok := s.accounts[id]
	if !ok {
		data = &accountData{
			lists:      make(map[uuid.UUID]models.List),
			listTombs:  make(map[uuid.UUID]models.ListTombstone),
			entries:    make(map[uuid.UUID]models.Entry),
			entryTombs: make(map[uuid.UUID]models.EntryTombstone),
		}
		s.accounts[id] = data
	}
	return data
}

func (s *SyncStore) ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.List) (repositories.ApplyOutcome, *models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.account(accountID)
	if _, ok := data.listTombs[rec.UUID]; ok {
		return repositories.ApplyTombstoned, nil, nil
	}
	if stored, ok := data.lists[rec.UUID]; ok && !rec.Changed.After(stored.Changed) {
		out := stored
		return repositories.ApplyStale, &out, nil
	}
	data.lists[rec.UUID] = rec
	out := rec
	return repositories.ApplyAccepted, &out, nil
}

func (s *SyncStore) ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.ListTombstone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.account(accountID)
	if existing, ok := data.listTombs[ts.ListUUID]; ok && existing.DeletedAt.After(ts.DeletedAt) {
		ts.DeletedAt = existing.DeletedAt
	}
	data.listTombs[ts.ListUUID] = ts
	delete(data.lists, ts.ListUUID)
	return nil
}

func (s *SyncStore) Get(ctx context.Context, accountID, listID uuid.UUID) (*models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.account(accountID).lists[listID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &list, nil
}

func (s *SyncStore) GetTombstone(ctx context.Context, accountID, listID uuid.UUID) (*models.ListTombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.account(accountID).listTombs[listID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &ts, nil
}

func (s *SyncStore) ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lists []models.List
	for _, list := range s.account(accountID).lists {
		if since == nil || !list.Changed.Before(*since) {
			lists = append(lists, list)
		}
	}
	return lists, nil
}

func (s *SyncStore) DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.ListTombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tombstones []models.ListTombstone
	for _, ts := range s.account(accountID).listTombs {
		if since == nil || !ts.DeletedAt.Before(*since) {
			tombstones = append(tombstones, ts)
		}
	}
	return tombstones, nil
}

// EntryStore wraps a SyncStore to satisfy EntryRepository; entry merge rules
// need list state, so both live in the same structure.
type EntryStore struct {
	*SyncStore
}

func (s *SyncStore) Entries() *EntryStore {
	return &EntryStore{SyncStore: s}
}

func (s *EntryStore) ApplyChanged(ctx context.Context, accountID uuid.UUID, client string, rec models.Entry) (repositories.ApplyOutcome, *models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.account(accountID)
	if _, ok := data.entryTombs[rec.UUID]; ok {
		return repositories.ApplyTombstoned, nil, nil
	}
	if _, ok := data.listTombs[rec.ListUUID]; ok {
		return repositories.ApplyTombstoned, nil, nil
	}
	if _, ok := data.lists[rec.ListUUID]; !ok {
		return repositories.ApplyUnknownList, nil, nil
	}
	if stored, ok := data.entries[rec.UUID]; ok && !rec.Changed.After(stored.Changed) {
		out := stored
		return repositories.ApplyStale, &out, nil
	}
	data.entries[rec.UUID] = rec
	out := rec
	return repositories.ApplyAccepted, &out, nil
}

func (s *EntryStore) ApplyDeleted(ctx context.Context, accountID uuid.UUID, client string, ts models.EntryTombstone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.account(accountID)
	if existing, ok := data.entryTombs[ts.EntryUUID]; ok && existing.DeletedAt.After(ts.DeletedAt) {
		ts.DeletedAt = existing.DeletedAt
	}
	data.entryTombs[ts.EntryUUID] = ts
	delete(data.entries, ts.EntryUUID)
	return nil
}

func (s *EntryStore) Get(ctx context.Context, accountID, entryID uuid.UUID) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.account(accountID).entries[entryID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &entry, nil
}

func (s *EntryStore) GetTombstone(ctx context.Context, accountID, entryID uuid.UUID) (*models.EntryTombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.account(accountID).entryTombs[entryID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &ts, nil
}

func (s *EntryStore) ChangedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.account(accountID)
	var entries []models.Entry
	for _, entry := range data.entries {
		// Entries whose list is gone are never served as live.
		if _, ok := data.lists[entry.ListUUID]; !ok {
			continue
		}
		if since == nil || !entry.Changed.Before(*since) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *EntryStore) DeletedSince(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]models.EntryTombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tombstones []models.EntryTombstone
	for _, ts := range s.account(accountID).entryTombs {
		if since == nil || !ts.DeletedAt.Before(*since) {
			tombstones = append(tombstones, ts)
		}
	}
	return tombstones, nil
}
