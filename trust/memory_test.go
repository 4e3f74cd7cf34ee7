package trust

import (
	"context"
	"testing"

	"github.com/appconnect-x/clipcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	device := &types.Device{
		ID:                     "dev-1",
		Name:                   "HostA",
		PublicKey:              "base64-spki",
		CertificateFingerprint: "SHA256:ABCD",
		IsTrusted:              true,
		LastSeen:               1000,
	}
	require.NoError(t, store.Insert(ctx, device))

	got, err := store.GetByID(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, device.Name, got.Name)

	// Returned record is a copy; mutating it must not affect the store.
	got.Name = "mutated"
	got2, _ := store.GetByID(ctx, "dev-1")
	assert.Equal(t, "HostA", got2.Name)
}

func TestMemoryStore_GetByID_NotFound(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_ListTrusted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &types.Device{ID: "a", IsTrusted: true, CertificateFingerprint: "SHA256:A"}))
	require.NoError(t, store.Insert(ctx, &types.Device{ID: "b", IsTrusted: false, CertificateFingerprint: "SHA256:B"}))

	trusted := store.ListTrusted()
	require.Len(t, trusted, 1)
	assert.Equal(t, "SHA256:A", trusted[0].CertificateFingerprint)
}

func TestMemoryStore_UpdateNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update(context.Background(), &types.Device{ID: "missing"})
	assert.Error(t, err)
}

func TestMemoryStore_Touch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &types.Device{ID: "a", LastSeen: 1}))

	require.NoError(t, store.Touch(ctx, "a", 9999))
	got, _ := store.GetByID(ctx, "a")
	assert.EqualValues(t, 9999, got.LastSeen)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &types.Device{ID: "a"}))
	require.NoError(t, store.Delete(ctx, "a"))

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &types.Device{ID: "a"}))
	require.NoError(t, store.Insert(ctx, &types.Device{ID: "b"}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
