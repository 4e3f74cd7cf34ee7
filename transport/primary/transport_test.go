package primary

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/handshake"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/pinning"
	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/types"
)

func TestReconnectPolicy_DelayMonotonicAndSaturates(t *testing.T) {
	policy := ReconnectPolicy{BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, MaxAttempts: 10}

	var prev time.Duration
	for n := 1; n <= policy.MaxAttempts; n++ {
		d := policy.Delay(n)
		// Subtract the jitter ceiling to compare the deterministic floor.
		floor := d - time.Second
		assert.GreaterOrEqual(t, floor, prev-time.Second, "delay floor must be non-decreasing at attempt %d", n)
		assert.LessOrEqual(t, d, policy.MaxDelay+time.Second)
		prev = floor
	}
}

func TestReconnectPolicy_SaturatesAtMax(t *testing.T) {
	policy := DefaultReconnectPolicy()
	d := policy.Delay(20)
	assert.LessOrEqual(t, d, policy.MaxDelay+time.Second)
	assert.GreaterOrEqual(t, d, policy.MaxDelay)
}

func TestReconnectPolicy_FirstAttemptIsBaseDelay(t *testing.T) {
	policy := DefaultReconnectPolicy()
	d := policy.Delay(1)
	assert.GreaterOrEqual(t, d, policy.BaseDelay)
	assert.Less(t, d, policy.BaseDelay+time.Second)
}

// newWSTestServer starts a plain-HTTP websocket endpoint and hands each
// upgraded connection to handler on its own goroutine, standing in for
// the peer half of the handshake and readLoop state machine. Real TLS
// and certificate pinning are exercised separately by the pinning
// package; here Transport.dial is swapped so attemptConnect's call to
// Validator.TLSConfig never actually touches the network.
func newWSTestServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestTransport(t *testing.T, wsURL string) *Transport {
	t.Helper()
	tr := New(pinning.NewValidator(trust.NewMemoryStore()))
	tr.Log = logger.NewLogger(io.Discard, logger.ErrorLevel)
	tr.dial = func(ctx context.Context, _ string, _ *tls.Config) (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return conn, err
	}
	return tr
}

// serverCompleteHandshake plays the peer side of the handshake over conn
// and returns the session key it recovered.
func serverCompleteHandshake(t *testing.T, conn *websocket.Conn, priv *rsa.PrivateKey) []byte {
	t.Helper()
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	typ, parsed, err := envelope.ParseControlFrame(string(raw))
	require.NoError(t, err)
	require.Equal(t, envelope.TypeKeyExchange, typ)
	ke := parsed.(envelope.KeyExchange)

	sessionKey, ackFrame, err := handshake.ServerAccept(priv, ke)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(ackFrame)))
	return sessionKey
}

func TestConnect_HandshakeSuccess_DispatchesFramesToListener(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		serverCompleteHandshake(t, conn, priv)
		conn.WriteMessage(websocket.TextMessage, []byte("aGVsbG8=|d29ybGQ="))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"some_future_type"}`))
		time.Sleep(200 * time.Millisecond)
	})

	tr := newTestTransport(t, wsURL)
	received := make(chan string, 2)
	tr.OnMessage(func(frame string) { received <- frame })

	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))
	assert.Equal(t, types.Connected, tr.ConnectionState())
	assert.NotNil(t, tr.SessionKey())

	select {
	case msg := <-received:
		assert.Equal(t, "aGVsbG8=|d29ybGQ=", msg, "encrypted frames must reach the clipboard path")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for encrypted frame")
	}

	select {
	case msg := <-received:
		assert.Contains(t, msg, "some_future_type", "unrecognized-type frames must reach the clipboard path")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unrecognized-type frame")
	}

	tr.Disconnect()
	assert.Equal(t, types.Disconnected, tr.ConnectionState())
}

func TestConnect_HandshakeRejectedByPeer(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, _, rerr := conn.ReadMessage()
		require.NoError(t, rerr)
		ackFrame, merr := envelope.MarshalControlFrame(envelope.KeyExchangeAck{
			Type: envelope.TypeKeyExchangeAck, Status: "error", Message: "rejected",
		})
		require.NoError(t, merr)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(ackFrame)))
	})

	tr := newTestTransport(t, wsURL)
	err = tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey)

	assert.Error(t, err)
	assert.Equal(t, types.Disconnected, tr.ConnectionState())
	assert.Nil(t, tr.SessionKey())
}

func TestReadLoop_PostHandshakeKeyExchangeFrameClosesPolicyViolation(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		serverCompleteHandshake(t, conn, priv)
		frame, ferr := envelope.MarshalControlFrame(envelope.KeyExchange{
			Type: envelope.TypeKeyExchange, EncryptedKey: "ignored",
		})
		require.NoError(t, ferr)
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(200 * time.Millisecond)
	})

	tr := newTestTransport(t, wsURL)
	var received []string
	tr.OnMessage(func(frame string) { received = append(received, frame) })

	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))

	require.Eventually(t, func() bool {
		return tr.ConnectionState() == types.Disconnected
	}, 2*time.Second, 10*time.Millisecond, "a handshake frame out of order must end the connection")

	assert.Empty(t, received, "a handshake frame arriving post-handshake must never reach the clipboard path")

	tr.mu.Lock()
	desired := tr.reconnectDesired
	tr.mu.Unlock()
	assert.False(t, desired, "a policy violation must not trigger reconnection")
}

func TestHandleReadError_NormalCloseDisablesReconnect(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		serverCompleteHandshake(t, conn, priv)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(types.CloseNormal, ""))
	})

	tr := newTestTransport(t, wsURL)
	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))

	require.Eventually(t, func() bool {
		return tr.ConnectionState() == types.Disconnected
	}, 2*time.Second, 10*time.Millisecond)

	tr.mu.Lock()
	desired := tr.reconnectDesired
	attempt := tr.reconnectAttempt
	tr.mu.Unlock()
	assert.False(t, desired, "a normal close must not schedule a reconnect")
	assert.Zero(t, attempt)
}

func TestHandleReadError_AbruptCloseSchedulesReconnect(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverDone := make(chan struct{})
	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		serverCompleteHandshake(t, conn, priv)
		conn.Close() // abrupt: no close control frame
		close(serverDone)
	})

	tr := newTestTransport(t, wsURL)
	// Long enough that the scheduled reconnect goroutine never actually
	// redials during the test; Disconnect cancels it during cleanup.
	tr.Policy = ReconnectPolicy{BaseDelay: time.Minute, MaxDelay: time.Minute, MaxAttempts: 5}

	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))
	<-serverDone

	require.Eventually(t, func() bool {
		return tr.ConnectionState() == types.Disconnected
	}, 2*time.Second, 10*time.Millisecond)

	tr.mu.Lock()
	desired := tr.reconnectDesired
	attempt := tr.reconnectAttempt
	tr.mu.Unlock()
	assert.True(t, desired, "an abrupt close must keep reconnection desired")
	assert.Equal(t, 1, attempt)

	tr.Disconnect()
}

func TestSend_FalseWhenNotConnected(t *testing.T) {
	tr := New(pinning.NewValidator(trust.NewMemoryStore()))
	assert.False(t, tr.Send("frame"))
}

func TestSend_WritesFrameAfterHandshake(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverReceived := make(chan string, 1)
	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		serverCompleteHandshake(t, conn, priv)
		_, raw, rerr := conn.ReadMessage()
		if rerr == nil {
			serverReceived <- string(raw)
		}
	})

	tr := newTestTransport(t, wsURL)
	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))

	assert.True(t, tr.Send("aGVsbG8=|d29ybGQ="))

	select {
	case got := <-serverReceived:
		assert.Equal(t, "aGVsbG8=|d29ybGQ=", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive sent frame")
	}

	tr.Disconnect()
}

func TestDisconnect_SetsDisconnectedAndClearsSessionKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		serverCompleteHandshake(t, conn, priv)
		conn.ReadMessage() // blocks until the client closes
	})

	tr := newTestTransport(t, wsURL)
	require.NoError(t, tr.Connect(context.Background(), "ignored-host", 0, &priv.PublicKey))
	assert.Equal(t, types.Connected, tr.ConnectionState())

	tr.Disconnect()

	assert.Equal(t, types.Disconnected, tr.ConnectionState())
	assert.Nil(t, tr.SessionKey())
}
