package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/appconnect-x/clipcore/clipboard"
	"github.com/appconnect-x/clipcore/clipboardio"
	"github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent       []string
	sendResult bool
	key        []byte
	kind       types.TransportKind
}

func (f *fakeTransport) Send(frame string) bool {
	f.sent = append(f.sent, frame)
	return f.sendResult
}
func (f *fakeTransport) SessionKey() []byte        { return f.key }
func (f *fakeTransport) Kind() types.TransportKind { return f.kind }

func newTestEngine(t *testing.T) (*Engine, *fakeTransport, clipboard.Store) {
	t.Helper()
	key, err := crypto.NewSessionKey()
	require.NoError(t, err)

	store := clipboard.NewMemoryStore(key)
	adapter := clipboardio.NewChannelAdapter()
	t.Cleanup(adapter.Close)

	engine := New(store, adapter)
	engine.Log = logger.NewLogger(discard{}, logger.ErrorLevel)
	transport := &fakeTransport{sendResult: true, key: key, kind: types.TransportPrimary}
	engine.PrimaryTransport = transport
	return engine, transport, store
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleLocalChange_PersistsAndSends(t *testing.T) {
	engine, transport, store := newTestEngine(t)

	engine.HandleLocalChange("hello")

	require.Len(t, transport.sent, 1)
	items, err := store.ItemsFlow(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hello", items[0].Content)
	assert.True(t, items[0].Synced)
}

func TestHandleLocalChange_EmptySkipped(t *testing.T) {
	engine, transport, store := newTestEngine(t)
	engine.HandleLocalChange("")

	assert.Empty(t, transport.sent)
	items, _ := store.ItemsFlow(context.Background())
	assert.Empty(t, items)
}

func TestHandleLocalChange_LoopSuppression(t *testing.T) {
	engine, transport, _ := newTestEngine(t)
	now := time.Now()
	engine.Now = func() time.Time { return now }
	engine.lastWrittenHash = crypto.Sha256HexUpper([]byte("world"))
	engine.lastWrittenTime = now

	engine.HandleLocalChange("world")
	assert.Empty(t, transport.sent, "a change matching the just-written hash within the window must be dropped")
}

func TestHandleLocalChange_OutsideWindowNotSuppressed(t *testing.T) {
	engine, transport, _ := newTestEngine(t)
	now := time.Now()
	engine.Now = func() time.Time { return now }
	engine.lastWrittenHash = crypto.Sha256HexUpper([]byte("world"))
	engine.lastWrittenTime = now.Add(-3 * time.Second)

	engine.HandleLocalChange("world")
	assert.Len(t, transport.sent, 1)
}

func TestHandleLocalChange_SendFailureKeepsUnsynced(t *testing.T) {
	engine, transport, store := newTestEngine(t)
	transport.sendResult = false

	engine.HandleLocalChange("hello")

	items, err := store.ItemsFlow(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Synced)
}

func TestHandleInbound_ForegroundDelivery(t *testing.T) {
	engine, transport, store := newTestEngine(t)
	engine.Foreground = func() bool { return true }
	adapter := engine.Adapter.(*clipboardio.ChannelAdapter)

	item := types.ClipboardItem{ID: "item-1", Content: "world", ContentType: types.ContentTypeText, Hash: crypto.Sha256HexUpper([]byte("world"))}
	payload, err := json.Marshal(item)
	require.NoError(t, err)
	frame, err := envelope.SealText(transport.key, payload)
	require.NoError(t, err)

	engine.HandleInbound(transport, frame)

	select {
	case written := <-adapter.Written:
		assert.Equal(t, "world", written)
	case <-time.After(time.Second):
		t.Fatal("expected local clipboard write")
	}

	stored, err := store.Get(context.Background(), "item-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "world", stored.Content)

	// One clipboard_sync_result frame should have been sent back.
	require.Len(t, transport.sent, 1)
	assert.Contains(t, transport.sent[0], `"type":"clipboard_sync_result"`)
}

func TestHandleInbound_BackgroundDebouncedDelivery(t *testing.T) {
	engine, transport, _ := newTestEngine(t)
	engine.Foreground = func() bool { return false }
	engine.NotifyDebounce = 10 * time.Millisecond
	adapter := engine.Adapter.(*clipboardio.ChannelAdapter)

	item := types.ClipboardItem{ID: "item-2", Content: "background text", ContentType: types.ContentTypeText}
	payload, _ := json.Marshal(item)
	frame, err := envelope.SealText(transport.key, payload)
	require.NoError(t, err)

	engine.HandleInbound(transport, frame)

	select {
	case written := <-adapter.Written:
		assert.Equal(t, "background text", written)
	case <-time.After(time.Second):
		t.Fatal("expected debounced delivery to eventually write locally")
	}
}

func TestHandleInbound_DecryptFailureDropsFrame(t *testing.T) {
	engine, transport, store := newTestEngine(t)
	engine.HandleInbound(transport, "aGVsbG8=|bm90LXZhbGlkLWNpcGhlcnRleHQ=")

	items, _ := store.ItemsFlow(context.Background())
	assert.Empty(t, items)
}

func TestRefusesContentOverTransport_ImageOverFallback(t *testing.T) {
	assert.True(t, refusesContentOverTransport(types.ContentTypeImage, types.TransportFallback))
}

func TestRefusesContentOverTransport_ImageOverPrimaryAllowed(t *testing.T) {
	assert.False(t, refusesContentOverTransport(types.ContentTypeImage, types.TransportPrimary))
}

func TestRefusesContentOverTransport_TextOverFallbackAllowed(t *testing.T) {
	assert.False(t, refusesContentOverTransport(types.ContentTypeText, types.TransportFallback))
}

func TestHandleLocalChange_TextNeverRefusedOverFallback(t *testing.T) {
	// HandleLocalChange's own outbound items are always TEXT (the
	// clipboard adapter contract is text-only), so this confirms the
	// guard the engine evaluates on the real outbound path never fires
	// for the content type that path can actually produce, and that a
	// send over the fallback transport still goes through.
	engine, _, store := newTestEngine(t)
	fb := &fakeTransport{sendResult: true, key: mustKey(t), kind: types.TransportFallback}
	engine.PrimaryTransport = nil
	engine.FallbackTransport = fb

	engine.HandleLocalChange("fallback text")

	require.Len(t, fb.sent, 1)
	items, _ := store.ItemsFlow(context.Background())
	require.Len(t, items, 1)
	assert.False(t, refusesContentOverTransport(items[0].ContentType, fb.Kind()))
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.NewSessionKey()
	require.NoError(t, err)
	return key
}
