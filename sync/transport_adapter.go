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

package sync

import (
	"context"
	"crypto/rsa"
	"sync"

	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/handshake"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/transport/fallback"
	"github.com/appconnect-x/clipcore/transport/primary"
	"github.com/appconnect-x/clipcore/types"
)

// Transport is the minimal surface the sync engine needs from either the
// primary or the fallback transport: submit a frame, read the active
// session key, and report which kind it is (content-type policy keys
// off this).
type Transport interface {
	Send(frame string) bool
	SessionKey() []byte
	Kind() types.TransportKind
}

// PrimaryAdapter satisfies Transport for the primary websocket
// transport, which already exposes Send/SessionKey directly.
type PrimaryAdapter struct{ *primary.Transport }

// Kind reports this as the primary transport.
func (PrimaryAdapter) Kind() types.TransportKind { return types.TransportPrimary }

// FallbackAdapter satisfies Transport for the byte-stream fallback
// transport. Spec §4.I says the session handshake (§4.G) "runs anyway
// using the same envelope codec" even though the fallback transport has
// no handshake-ack-gated state machine of its own; this adapter performs
// that handshake by intercepting the key_exchange_ack before any other
// inbound frame reaches the registered listener.
type FallbackAdapter struct {
	*fallback.Transport

	mu         sync.Mutex
	sessionKey []byte
	ackCh      chan envelope.KeyExchangeAck
	listener   fallback.Listener
}

// NewFallbackAdapter wraps t, installing the handshake-intercepting
// message router.
func NewFallbackAdapter(t *fallback.Transport) *FallbackAdapter {
	a := &FallbackAdapter{Transport: t, ackCh: make(chan envelope.KeyExchangeAck, 1)}
	t.OnMessage(a.route)
	return a
}

func (a *FallbackAdapter) route(frame string) {
	if !envelope.IsEncryptedFrame(frame) {
		if typ, parsed, err := envelope.ParseControlFrame(frame); err == nil && typ == envelope.TypeKeyExchangeAck {
			select {
			case a.ackCh <- parsed.(envelope.KeyExchangeAck):
			default:
			}
			return
		}
	}
	if a.listener != nil {
		a.listener(frame)
	}
}

// OnMessage registers the listener for post-handshake frames.
func (a *FallbackAdapter) OnMessage(fn fallback.Listener) { a.listener = fn }

// Handshake runs the client side of the session-key protocol over the
// already-connected fallback transport.
func (a *FallbackAdapter) Handshake(ctx context.Context, peerPublicKey *rsa.PublicKey) error {
	key, frame, err := handshake.ClientHandshake(peerPublicKey)
	if err != nil {
		return err
	}
	if !a.Transport.Send([]byte(frame)) {
		return errs.New(errs.CodeSendFail, "failed to send key_exchange over fallback transport", nil)
	}

	select {
	case ack := <-a.ackCh:
		if err := handshake.HandleAck(ack); err != nil {
			return err
		}
		a.mu.Lock()
		a.sessionKey = key
		a.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionKey returns the key established by Handshake, or nil.
func (a *FallbackAdapter) SessionKey() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionKey
}

// Send encodes frame onto the byte-stream transport.
func (a *FallbackAdapter) Send(frame string) bool {
	return a.Transport.Send([]byte(frame))
}

// Kind reports this as the fallback transport.
func (a *FallbackAdapter) Kind() types.TransportKind { return types.TransportFallback }
