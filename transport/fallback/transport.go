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

// Package fallback implements the serial byte-stream fallback transport
// (spec §4.I): used when the primary framed connection is unavailable,
// over a short-range channel identified by a fixed well-known service
// identifier. Framing is 1:1 with writes; the session handshake (§4.G)
// still runs over the same envelope codec, just without a handshake ack
// distinguishing the two transports at the state-machine level.
package fallback

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/internal/metrics"
	"github.com/appconnect-x/clipcore/types"
)

// ReceiveBufferSize is the fixed-size receive buffer per spec §4.I
// ("fixed-size buffer (≥1024 bytes)").
const ReceiveBufferSize = 4096

// Listener receives each message read off the byte stream: one invocation
// per read, of at most ReceiveBufferSize bytes. A peer Send larger than
// that arrives as several messages.
type Listener func(message string)

// Dialer abstracts opening the underlying byte-stream connection so
// tests can substitute an in-memory pipe for the short-range channel.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// Transport implements the fallback connection. Its state machine
// mirrors the primary transport's but without a handshake-ack gate.
type Transport struct {
	Dial Dialer
	Log  logger.Logger

	mu    sync.Mutex
	conn  net.Conn
	state types.ConnectionState

	onMessage Listener
	wg        sync.WaitGroup
}

// New constructs a fallback Transport with the default net.Dialer.
func New() *Transport {
	return &Transport{
		Log:   logger.NewDefaultLogger(),
		state: types.Disconnected,
		Dial: func(ctx context.Context, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", address)
		},
	}
}

// OnMessage registers the callback invoked for every received message.
func (t *Transport) OnMessage(fn Listener) { t.onMessage = fn }

// ConnectionState returns the current state.
func (t *Transport) ConnectionState() types.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect opens the serial byte-stream at address, using the
// already-negotiated fallback service identifier encoded by the caller
// into address, and transitions to Connected on success.
func (t *Transport) Connect(ctx context.Context, address string) error {
	t.mu.Lock()
	if t.state == types.Connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	t.setState(types.Connecting)

	conn, err := t.Dial(ctx, address)
	if err != nil {
		t.setState(types.Disconnected)
		return errs.New(errs.CodeUnreachable, "failed to open fallback transport", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.setState(types.Connected)

	t.wg.Add(1)
	go t.readLoop(conn)
	return nil
}

func (t *Transport) readLoop(conn net.Conn) {
	defer t.wg.Done()
	reader := bufio.NewReaderSize(conn, ReceiveBufferSize)
	buf := make([]byte, ReceiveBufferSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 && t.onMessage != nil {
			t.onMessage(string(buf[:n]))
		}
		if err != nil {
			t.mu.Lock()
			t.conn = nil
			t.mu.Unlock()
			t.setState(types.Disconnected)
			return
		}
	}
}

// Send writes message and flushes. Framing is 1:1 with writes; callers
// must pass one envelope per Send.
func (t *Transport) Send(message []byte) bool {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == types.Connected
	t.mu.Unlock()

	if !connected || conn == nil {
		return false
	}

	if _, err := conn.Write(message); err != nil {
		t.Log.Warn("fallback send failed", logger.Error(err))
		metrics.CloseCodes.WithLabelValues("fallback", "abrupt").Inc()
		return false
	}
	return true
}

// Disconnect closes the underlying connection.
func (t *Transport) Disconnect() {
	t.setState(types.Disconnecting)
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.wg.Wait()
	t.setState(types.Disconnected)
}

func (t *Transport) setState(s types.ConnectionState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	metrics.ConnectionState.WithLabelValues("fallback").Set(float64(s))
}
