// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package primary implements the primary bidirectional framed transport
// (spec §4.H): a TLS-protected gorilla/websocket connection, pinned via
// the fingerprint validator, carrying the session handshake and then the
// encrypted clipboard envelope. Unlike a request/response RPC client,
// it holds a persistent connection with an asynchronous message-listener
// callback, since the sync engine needs inbound frames pushed to it
// rather than correlated to an outstanding send.
package primary

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/handshake"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/internal/metrics"
	"github.com/appconnect-x/clipcore/pinning"
	"github.com/appconnect-x/clipcore/types"
)

// ReconnectPolicy governs the capped exponential backoff with jitter
// used between reconnection attempts.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy returns the production defaults: base ≥ 2s,
// max ≥ 60s, cap ≥ 10 attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, MaxAttempts: 10}
}

// Delay returns the backoff delay for attempt n (1-indexed), including
// jitter in [0, 1s). d(n) = min(base*2^(n-1), max) + U(0, 1000ms).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	for i := 1; i < attempt; i++ {
		base *= 2
		if base >= p.MaxDelay {
			base = p.MaxDelay
			break
		}
	}
	if base > p.MaxDelay {
		base = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base + jitter
}

// Listener receives inbound frames that reach the clipboard path:
// encrypted envelopes and unrecognized-type control frames (spec §4.H:
// "only unrecognized-type frames and encrypted frames reach the
// clipboard path").
type Listener func(frame string)

// StateListener is notified on every connection state transition.
type StateListener func(types.ConnectionState)

// Transport implements the primary connection's state machine.
type Transport struct {
	Validator  *pinning.Validator
	PrivateKey *rsa.PrivateKey // unused on the client role; reserved for a server-role peer
	Policy     ReconnectPolicy
	Log        logger.Logger

	dial func(ctx context.Context, u string, tlsConfig *tls.Config) (*websocket.Conn, error)

	mu              sync.Mutex
	conn            *websocket.Conn
	state           types.ConnectionState
	sessionKey      []byte
	reconnectAttempt int
	reconnectDesired bool
	cancelReconnect  context.CancelFunc

	host          string
	port          int
	peerPublicKey *rsa.PublicKey

	onMessage Listener
	onState   StateListener

	wg sync.WaitGroup
}

// New constructs a Transport. validator supplies the TLS fingerprint pin.
func New(validator *pinning.Validator) *Transport {
	return &Transport{
		Validator: validator,
		Policy:    DefaultReconnectPolicy(),
		Log:       logger.NewDefaultLogger(),
		state:     types.Disconnected,
		dial:      defaultDial,
	}
}

func defaultDial(ctx context.Context, u string, tlsConfig *tls.Config) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second, TLSClientConfig: tlsConfig}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	return conn, err
}

// OnMessage registers the callback invoked for every frame that reaches
// the clipboard path.
func (t *Transport) OnMessage(fn Listener) { t.onMessage = fn }

// OnStateChange registers the callback invoked on every state
// transition.
func (t *Transport) OnStateChange(fn StateListener) { t.onState = fn }

// ConnectionState returns the current state.
func (t *Transport) ConnectionState() types.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionKey returns the active AEAD key, or nil if none is established.
func (t *Transport) SessionKey() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionKey
}

// Connect is idempotent: it records (host, port, peerPublicKey) as the
// reconnect seed and opens the connection if not already
// connecting/connected.
func (t *Transport) Connect(ctx context.Context, host string, port int, peerPublicKey *rsa.PublicKey) error {
	t.mu.Lock()
	if t.state == types.Connecting || t.state == types.Connected {
		t.mu.Unlock()
		return nil
	}
	t.host, t.port, t.peerPublicKey = host, port, peerPublicKey
	t.reconnectDesired = true
	t.mu.Unlock()

	return t.attemptConnect(ctx)
}

func (t *Transport) attemptConnect(ctx context.Context) error {
	t.setState(types.Connecting)

	u := url.URL{Scheme: "wss", Host: fmt.Sprintf("%s:%s", t.host, strconv.Itoa(t.port)), Path: "/clipsync"}
	tlsConfig := t.Validator.TLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})

	conn, err := t.dial(ctx, u.String(), tlsConfig)
	if err != nil {
		t.Log.Warn("primary transport dial failed", logger.Error(err))
		t.setState(types.Disconnected)
		t.scheduleReconnect()
		return errs.New(errs.CodeTransientNet, "failed to connect", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	sessionKey, keFrame, err := handshake.ClientHandshake(t.peerPublicKey)
	if err != nil {
		t.failHandshake(err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(keFrame)); err != nil {
		t.failHandshake(errs.New(errs.CodeSendFail, "failed to send key_exchange", err))
		return err
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.failHandshake(errs.New(errs.CodeHandshakeRejected, "failed to read key_exchange_ack", err))
		return err
	}

	typ, parsed, err := envelope.ParseControlFrame(string(raw))
	if err != nil || typ != envelope.TypeKeyExchangeAck {
		t.closePolicyViolation()
		return errs.New(errs.CodeHandshakeRejected, "unexpected frame during handshake", err)
	}
	ack := parsed.(envelope.KeyExchangeAck)
	if err := handshake.HandleAck(ack); err != nil {
		t.closePolicyViolation()
		return err
	}

	t.mu.Lock()
	t.sessionKey = sessionKey
	t.reconnectAttempt = 0
	t.mu.Unlock()
	t.setState(types.Connected)

	t.wg.Add(1)
	go t.readLoop(conn)
	return nil
}

func (t *Transport) failHandshake(err error) {
	t.Log.Warn("handshake failed", logger.Error(err))
	t.closePolicyViolation()
}

// closePolicyViolation closes with 1008 semantics: no reconnect, clear
// the session key.
func (t *Transport) closePolicyViolation() {
	t.mu.Lock()
	if t.conn != nil {
		t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(types.ClosePolicyViolation, ""))
		t.conn.Close()
		t.conn = nil
	}
	t.sessionKey = nil
	t.reconnectDesired = false
	t.mu.Unlock()
	t.setState(types.Disconnected)
	metrics.CloseCodes.WithLabelValues("primary", "policy_violation").Inc()
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer t.wg.Done()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.handleReadError(err)
			return
		}
		frame := string(raw)

		if envelope.IsEncryptedFrame(frame) {
			if t.onMessage != nil {
				t.onMessage(frame)
			}
			continue
		}

		typ, _, parseErr := envelope.ParseControlFrame(frame)
		if parseErr != nil {
			t.Log.Warn("dropping malformed control frame", logger.Error(parseErr))
			continue
		}
		switch typ {
		case envelope.TypeKeyExchange, envelope.TypeKeyExchangeAck:
			// Arriving outside the handshake window: out-of-order, policy violation.
			t.Log.Warn("handshake frame received post-handshake", logger.String("type", string(typ)))
			t.closePolicyViolation()
			return
		case envelope.TypeErrorReport, envelope.TypeConnectionStatus, envelope.TypeClipboardSyncResult:
			// Handled locally; not forwarded to the sync engine.
			t.Log.Debug("control frame received", logger.String("type", string(typ)))
		default:
			// Unrecognized types reach the clipboard path per spec §4.H.
			if t.onMessage != nil {
				t.onMessage(frame)
			}
		}
	}
}

func (t *Transport) handleReadError(err error) {
	closeCode := websocket.CloseAbnormalClosure
	if ce, ok := err.(*websocket.CloseError); ok {
		closeCode = ce.Code
	}

	t.mu.Lock()
	t.conn = nil
	t.sessionKey = nil
	t.mu.Unlock()

	switch closeCode {
	case types.CloseNormal:
		metrics.CloseCodes.WithLabelValues("primary", "normal").Inc()
		t.mu.Lock()
		t.reconnectDesired = false
		t.mu.Unlock()
		t.setState(types.Disconnected)
	case types.ClosePolicyViolation:
		metrics.CloseCodes.WithLabelValues("primary", "policy_violation").Inc()
		t.mu.Lock()
		t.reconnectDesired = false
		t.mu.Unlock()
		t.setState(types.Disconnected)
	default:
		metrics.CloseCodes.WithLabelValues("primary", "abrupt").Inc()
		t.setState(types.Disconnected)
		t.scheduleReconnect()
	}
}

// scheduleReconnect arms a single delayed reconnect attempt if policy
// allows. It never fires immediately: the minimum wait is the policy's
// base delay, preventing reconnection storms on repeated send failures.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	if !t.reconnectDesired || t.reconnectAttempt >= t.Policy.MaxAttempts {
		t.mu.Unlock()
		return
	}
	t.reconnectAttempt++
	attempt := t.reconnectAttempt
	ctx, cancel := context.WithCancel(context.Background())
	t.cancelReconnect = cancel
	t.mu.Unlock()

	delay := t.Policy.Delay(attempt)
	metrics.ReconnectAttempts.WithLabelValues("primary").Inc()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if !t.hasReconnectSeed() {
			return
		}
		_ = t.attemptConnect(ctx)
	}()
}

func (t *Transport) hasReconnectSeed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.host != ""
}

// Send transmits frame if the transport is Connected with a completed
// handshake; otherwise it returns false. On send failure it schedules a
// delayed reconnect probe if reconnection is still desired.
func (t *Transport) Send(frame string) bool {
	t.mu.Lock()
	if t.state != types.Connected || t.conn == nil || t.sessionKey == nil {
		t.mu.Unlock()
		return false
	}
	conn := t.conn
	t.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Log.Warn("send failed", logger.Error(err))
		t.scheduleReconnect()
		return false
	}
	return true
}

// Disconnect cancels reconnection intent, closes the socket with a
// normal close code, and clears the session key.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.reconnectDesired = false
	if t.cancelReconnect != nil {
		t.cancelReconnect()
	}
	conn := t.conn
	t.conn = nil
	t.sessionKey = nil
	t.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(types.CloseNormal, ""))
		conn.Close()
	}
	t.setState(types.Disconnected)
	t.wg.Wait()
}

func (t *Transport) setState(s types.ConnectionState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	metrics.ConnectionState.WithLabelValues("primary").Set(float64(s))
	if t.onState != nil {
		t.onState(s)
	}
}
