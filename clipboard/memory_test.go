package clipboard

import (
	"context"
	"testing"

	"github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	key, err := crypto.NewSessionKey()
	require.NoError(t, err)
	return NewMemoryStore(key)
}

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := &types.ClipboardItem{
		ID:          "item-1",
		Content:     "hello world",
		ContentType: types.ContentTypeText,
		Timestamp:   1000,
		TTL:         86400000,
		Hash:        crypto.Sha256HexUpper([]byte("hello world")),
	}
	require.NoError(t, store.Put(ctx, item))

	got, err := store.Get(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello world", got.Content)
	assert.False(t, got.Synced)
}

func TestMemoryStore_Get_DecryptFailureReturnsPlaceholder(t *testing.T) {
	ctx := context.Background()
	key1, _ := crypto.NewSessionKey()
	key2, _ := crypto.NewSessionKey()

	store := NewMemoryStore(key1)
	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "a", Content: "secret"}))

	// Simulate a local key reset by reading with a different key.
	store.localKey = key2
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StoreDecryptPlaceholder, got.Content)
}

func TestMemoryStore_UnsyncedFlow_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "new", Timestamp: 200}))
	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "old", Timestamp: 100}))
	require.NoError(t, store.MarkSynced(ctx, "new"))

	unsynced, err := store.UnsyncedFlow(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "old", unsynced[0].ID)
}

func TestMemoryStore_ItemsFlow_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "a", Timestamp: 100}))
	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "b", Timestamp: 300}))
	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "c", Timestamp: 200}))

	items, err := store.ItemsFlow(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "expired", Timestamp: 1000, TTL: 1000}))
	require.NoError(t, store.Put(ctx, &types.ClipboardItem{ID: "alive", Timestamp: 1000, TTL: 1000000}))

	count, err := store.Sweep(ctx, 2500)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := store.ItemsFlow(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "alive", remaining[0].ID)
}

func TestMemoryStore_MarkSynced_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkSynced(context.Background(), "missing")
	assert.Error(t, err)
}
