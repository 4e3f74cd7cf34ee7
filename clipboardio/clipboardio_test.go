package clipboardio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelAdapter_LocalChangeForwarded(t *testing.T) {
	adapter := NewChannelAdapter()
	defer adapter.Close()

	received := make(chan string, 1)
	adapter.OnLocalChange(func(text string) { received <- text })

	adapter.Changes <- "hello"

	select {
	case text := <-received:
		assert.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for local change")
	}
}

func TestChannelAdapter_WriteLocal(t *testing.T) {
	adapter := NewChannelAdapter()
	defer adapter.Close()

	require.NoError(t, adapter.WriteLocal(context.Background(), "world"))
	select {
	case got := <-adapter.Written:
		assert.Equal(t, "world", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestChannelAdapter_NotifyInvokesCopyAction(t *testing.T) {
	adapter := NewChannelAdapter()
	defer adapter.Close()

	called := false
	require.NoError(t, adapter.Notify(context.Background(), "preview", func() { called = true }))
	assert.True(t, called)
}

func TestNoopAdapter_SatisfiesInterface(t *testing.T) {
	var _ Adapter = &NoopAdapter{}
	var _ Adapter = &ChannelAdapter{}
}
