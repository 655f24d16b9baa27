package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexisync/lexisync/internal/models"
	"github.com/lexisync/lexisync/internal/repositories/memory"
)

func newTestSyncService(t *testing.T) (*SyncService, uuid.UUID) {
	t.Helper()
	accounts := memory.NewAccountStore()
	store := memory.NewSyncStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSyncService(store, store.Entries(), accounts, logger)

	accountID := uuid.New()
	err := accounts.Create(context.Background(),
		&models.Account{UUID: accountID, Name: "device one"},
		&models.AccountKey{AccountID: accountID, AuthKey: []byte("pem"), KeyType: models.KeyTypeECPEM})
	require.NoError(t, err)
	return svc, accountID
}

func testList(id uuid.UUID, changed time.Time) models.List {
	return models.List{
		UUID:    id,
		Name:    "irregular verbs",
		NameA:   "english",
		NameB:   "spanish",
		Changed: changed,
		Created: changed.Add(-time.Hour),
	}
}

func testEntry(listID, id uuid.UUID, changed time.Time) models.Entry {
	return models.Entry{
		ListUUID: listID,
		UUID:     id,
		Tip:      "irregular",
		Changed:  changed,
		Meanings: []models.Meaning{{Value: "to go", IsA: false}, {Value: "ir", IsA: true}},
	}
}

func TestSyncListsChanged_AcceptsNewList(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	require.Contains(t, resp.Delta, listID)
	assert.Equal(t, "irregular verbs", resp.Delta[listID].Name)
	assert.Empty(t, resp.Deleted)
	assert.Empty(t, resp.Failures)
}

func TestSyncListsChanged_LastWriterWins(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	older := testList(listID, time.Now().Add(-2*time.Hour))
	newer := testList(listID, time.Now().Add(-time.Hour))
	newer.Name = "renamed"

	// Newer record arrives first; the older one must not overwrite it.
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "phone", Lists: []models.List{newer}})
	require.NoError(t, err)
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "laptop", Lists: []models.List{older}})
	require.NoError(t, err)

	require.Contains(t, resp.Delta, listID)
	assert.Equal(t, "renamed", resp.Delta[listID].Name, "stale submission must echo the stored record")
}

func TestSyncListsChanged_EqualTimestampKeepsStored(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	changed := time.Now().Add(-time.Hour)
	first := testList(listID, changed)
	second := testList(listID, changed)
	second.Name = "challenger"

	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "phone", Lists: []models.List{first}})
	require.NoError(t, err)
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "laptop", Lists: []models.List{second}})
	require.NoError(t, err)

	assert.Equal(t, "irregular verbs", resp.Delta[listID].Name)
}

func TestSyncListsChanged_Idempotent(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	req := ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(uuid.New(), time.Now().Add(-time.Minute))},
	}
	first, err := svc.SyncListsChanged(ctx, accountID, req)
	require.NoError(t, err)
	second, err := svc.SyncListsChanged(ctx, accountID, req)
	require.NoError(t, err)

	assert.Equal(t, first.Delta, second.Delta)
	assert.Equal(t, first.Deleted, second.Deleted)
}

func TestSyncListsChanged_RejectsFutureTimestamp(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(time.Hour))},
	})
	require.NoError(t, err)

	require.Len(t, resp.Failures, 1)
	assert.Equal(t, listID, resp.Failures[0].ID)
	assert.NotContains(t, resp.Delta, listID)
}

func TestSyncListsChanged_RejectsMissingIdentifier(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	good := testList(uuid.New(), time.Now().Add(-time.Minute))
	bad := testList(uuid.Nil, time.Now().Add(-time.Minute))

	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{bad, good},
	})
	require.NoError(t, err)

	// The malformed record fails alone; the rest of the batch still applies.
	require.Len(t, resp.Failures, 1)
	assert.Contains(t, resp.Delta, good.UUID)
}

func TestSyncLists_TombstoneDominates(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsDeleted(ctx, accountID, ListsDeletedRequest{
		Client: "phone",
		Lists:  []models.ListTombstone{{ListUUID: listID, DeletedAt: time.Now().Add(-time.Hour)}},
	})
	require.NoError(t, err)

	// Even a change stamped after the deletion cannot resurrect the list.
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "laptop",
		Lists:  []models.List{testList(listID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	assert.NotContains(t, resp.Delta, listID)
	assert.Contains(t, resp.Deleted, listID)
}

func TestSyncListsDeleted_UnknownListStillTombstoned(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	resp, err := svc.SyncListsDeleted(ctx, accountID, ListsDeletedRequest{
		Client: "phone",
		Lists:  []models.ListTombstone{{ListUUID: listID, DeletedAt: time.Now().Add(-time.Minute)}},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Delta, listID)
	assert.Empty(t, resp.Failures)
}

func TestSyncListsDeleted_Idempotent(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	req := ListsDeletedRequest{
		Client: "phone",
		Lists:  []models.ListTombstone{{ListUUID: uuid.New(), DeletedAt: time.Now().Add(-time.Minute)}},
	}
	first, err := svc.SyncListsDeleted(ctx, accountID, req)
	require.NoError(t, err)
	second, err := svc.SyncListsDeleted(ctx, accountID, req)
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Delta, second.Delta)
}

func TestSyncEntriesChanged_AcceptsEntryForKnownList(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(-time.Hour))},
	})
	require.NoError(t, err)

	entryID := uuid.New()
	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "phone",
		Entries: []models.Entry{testEntry(listID, entryID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	require.Contains(t, resp.Delta, entryID)
	assert.Len(t, resp.Delta[entryID].Meanings, 2)
	assert.Empty(t, resp.Failures)
}

func TestSyncEntriesChanged_UnknownListRejectedPerRecord(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	entryID := uuid.New()
	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "phone",
		Entries: []models.Entry{testEntry(uuid.New(), entryID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	require.Len(t, resp.Failures, 1)
	assert.Equal(t, entryID, resp.Failures[0].ID)
	assert.Equal(t, "unknown list", resp.Failures[0].Error)
}

func TestSyncEntriesChanged_ListTombstoneBlocksEntries(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsDeleted(ctx, accountID, ListsDeletedRequest{
		Client: "phone",
		Lists:  []models.ListTombstone{{ListUUID: listID, DeletedAt: time.Now().Add(-time.Hour)}},
	})
	require.NoError(t, err)

	entryID := uuid.New()
	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "laptop",
		Entries: []models.Entry{testEntry(listID, entryID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Deleted, entryID)
	assert.NotContains(t, resp.Delta, entryID)
}

func TestSyncEntriesChanged_DeletedListEntryNeverAlsoLive(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(-2*time.Hour))},
	})
	require.NoError(t, err)

	entryID := uuid.New()
	_, err = svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "phone",
		Entries: []models.Entry{testEntry(listID, entryID, time.Now().Add(-time.Hour))},
	})
	require.NoError(t, err)

	_, err = svc.SyncListsDeleted(ctx, accountID, ListsDeletedRequest{
		Client: "laptop",
		Lists:  []models.ListTombstone{{ListUUID: listID, DeletedAt: time.Now().Add(-30 * time.Minute)}},
	})
	require.NoError(t, err)

	// Resubmitting the entry must yield exactly one authoritative state:
	// deleted, never deleted and live at once.
	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "phone",
		Entries: []models.Entry{testEntry(listID, entryID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Deleted, entryID)
	assert.NotContains(t, resp.Delta, entryID)

	// A plain poll must not serve the orphaned entry as live either.
	poll, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{Client: "tablet"})
	require.NoError(t, err)
	assert.NotContains(t, poll.Delta, entryID)
}

func TestSyncEntriesChanged_LastWriterWins(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(-2*time.Hour))},
	})
	require.NoError(t, err)

	entryID := uuid.New()
	newer := testEntry(listID, entryID, time.Now().Add(-time.Hour))
	newer.Tip = "newer tip"
	older := testEntry(listID, entryID, time.Now().Add(-90*time.Minute))

	_, err = svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{Client: "phone", Entries: []models.Entry{newer}})
	require.NoError(t, err)
	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{Client: "laptop", Entries: []models.Entry{older}})
	require.NoError(t, err)

	assert.Equal(t, "newer tip", resp.Delta[entryID].Tip)
}

func TestSyncEntriesDeleted_WorksWithoutList(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	// Deleting entries of a list the server never saw must still record
	// tombstones, so deletions propagate to devices that do have the list.
	listID := uuid.New()
	entryID := uuid.New()
	resp, err := svc.SyncEntriesDeleted(ctx, accountID, EntriesDeletedRequest{
		Client:  "phone",
		Entries: []models.EntryTombstone{{ListUUID: listID, EntryUUID: entryID, DeletedAt: time.Now().Add(-time.Minute)}},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Delta, DeletedEntryRef{List: listID, Entry: entryID})
	assert.Empty(t, resp.Failures)
}

func TestSyncEntriesDeleted_TombstoneDominatesLaterChange(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	listID := uuid.New()
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(listID, time.Now().Add(-2*time.Hour))},
	})
	require.NoError(t, err)

	entryID := uuid.New()
	_, err = svc.SyncEntriesDeleted(ctx, accountID, EntriesDeletedRequest{
		Client:  "phone",
		Entries: []models.EntryTombstone{{ListUUID: listID, EntryUUID: entryID, DeletedAt: time.Now().Add(-time.Hour)}},
	})
	require.NoError(t, err)

	resp, err := svc.SyncEntriesChanged(ctx, accountID, EntriesChangedRequest{
		Client:  "laptop",
		Entries: []models.Entry{testEntry(listID, entryID, time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Deleted, entryID)
	assert.NotContains(t, resp.Delta, entryID)
}

func TestSyncListsChanged_SinceDelta(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	oldList := testList(uuid.New(), time.Now().Add(-3*time.Hour))
	newList := testList(uuid.New(), time.Now().Add(-time.Minute))
	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{oldList, newList},
	})
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour)
	resp, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "laptop", Since: &since})
	require.NoError(t, err)

	assert.Contains(t, resp.Delta, newList.UUID)
	assert.NotContains(t, resp.Delta, oldList.UUID)

	// Without since the full account view comes back.
	full, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{Client: "laptop"})
	require.NoError(t, err)
	assert.Contains(t, full.Delta, newList.UUID)
	assert.Contains(t, full.Delta, oldList.UUID)
}

func TestSyncIsolatedPerAccount(t *testing.T) {
	svc, accountID := newTestSyncService(t)
	ctx := context.Background()

	_, err := svc.SyncListsChanged(ctx, accountID, ListsChangedRequest{
		Client: "phone",
		Lists:  []models.List{testList(uuid.New(), time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)

	other := uuid.New()
	resp, err := svc.SyncListsChanged(ctx, other, ListsChangedRequest{Client: "phone"})
	require.NoError(t, err)
	assert.Empty(t, resp.Delta)
}
