package pairing

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validQR = `{"n":"HostA","ip":"192.168.1.10","p":8765,"k":"spki-b64","fp":"SHA256:ABCD"}`

func fakeManager(dial Dialer) *Manager {
	m := NewManager(trust.NewMemoryStore(), nil, nil)
	m.Dial = dial
	m.Now = func() int64 { return 1700000000000 }
	m.Log = logger.NewLogger(noopWriter{}, logger.ErrorLevel)
	return m
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func successfulDial(network, address string, timeout time.Duration) (net.Conn, error) {
	c1, c2 := net.Pipe()
	c2.Close()
	return c1, nil
}

func TestPair_Success(t *testing.T) {
	m := fakeManager(successfulDial)

	device, err := m.Pair(context.Background(), validQR)
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "HostA", device.Name)
	assert.True(t, device.IsTrusted)
	assert.Equal(t, "SHA256:ABCD", device.CertificateFingerprint)

	trusted := m.Store.ListTrusted()
	require.Len(t, trusted, 1)
	assert.Equal(t, device.ID, trusted[0].ID)
}

func TestPair_MalformedQR(t *testing.T) {
	m := fakeManager(successfulDial)

	_, err := m.Pair(context.Background(), `{not json`)
	require.Error(t, err)

	trusted := m.Store.ListTrusted()
	assert.Empty(t, trusted)
}

func TestPair_MissingField(t *testing.T) {
	m := fakeManager(successfulDial)

	_, err := m.Pair(context.Background(), `{"n":"HostA","ip":"192.168.1.10","p":8765,"k":"spki-b64"}`)
	require.Error(t, err)
}

func TestPair_Unreachable(t *testing.T) {
	m := fakeManager(func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	_, err := m.Pair(context.Background(), validQR)
	require.Error(t, err)

	trusted := m.Store.ListTrusted()
	assert.Empty(t, trusted, "no trust should be persisted on reachability failure")
}

type stubConnector struct {
	called bool
	err    error
}

func (s *stubConnector) Connect(ctx context.Context, host string, port int, peerPublicKeyB64 string) error {
	s.called = true
	return s.err
}

func TestPair_ConnectorFailureDoesNotUnwindTrust(t *testing.T) {
	m := fakeManager(successfulDial)
	connector := &stubConnector{err: errors.New("dial failed")}
	m.Connector = connector

	device, err := m.Pair(context.Background(), validQR)
	require.NoError(t, err)
	assert.True(t, connector.called)

	trusted := m.Store.ListTrusted()
	require.Len(t, trusted, 1)
	assert.Equal(t, device.ID, trusted[0].ID)
}

type stubAssociator struct{ called bool }

func (s *stubAssociator) Associate(ctx context.Context, device *types.Device) error {
	s.called = true
	return nil
}

func TestPair_InvokesAssociator(t *testing.T) {
	m := fakeManager(successfulDial)
	associator := &stubAssociator{}
	m.Associator = associator

	_, err := m.Pair(context.Background(), validQR)
	require.NoError(t, err)
	assert.True(t, associator.called)
}
