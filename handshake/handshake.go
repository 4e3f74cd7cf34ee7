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

// Package handshake implements the session-key establishment protocol
// run exactly once per transport connection (spec §4.G), before any
// clipboard frame is sent or accepted.
package handshake

import (
	"crypto/rsa"
	"encoding/base64"

	"github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/metrics"
)

// ClientHandshake runs the client side of the protocol: generate a fresh
// session key, wrap it for the peer, and return both the key and the
// wire-ready key_exchange frame to send. The caller owns transmitting
// the frame and awaiting the ack via HandleAck.
func ClientHandshake(peerPublicKey *rsa.PublicKey) (sessionKey []byte, frame string, err error) {
	sessionKey, err = crypto.NewSessionKey()
	if err != nil {
		return nil, "", err
	}

	wrapped, err := crypto.WrapSessionKey(peerPublicKey, sessionKey)
	if err != nil {
		return nil, "", err
	}

	frame, err = envelope.MarshalControlFrame(envelope.KeyExchange{
		Type:         envelope.TypeKeyExchange,
		EncryptedKey: base64.StdEncoding.EncodeToString(wrapped),
	})
	if err != nil {
		return nil, "", err
	}
	return sessionKey, frame, nil
}

// HandleAck interprets a received key_exchange_ack frame. On success it
// returns nil and the caller transitions to Connected, retaining
// sessionKey and resetting the reconnect attempt counter. On failure it
// returns a CodeHandshakeRejected error and the caller must close with a
// policy-violation code and not reconnect automatically.
func HandleAck(ack envelope.KeyExchangeAck) error {
	if ack.Status == "ok" {
		metrics.HandshakeOutcomes.WithLabelValues("ok").Inc()
		return nil
	}
	metrics.HandshakeOutcomes.WithLabelValues("rejected").Inc()
	return errs.New(errs.CodeHandshakeRejected, "peer rejected key exchange: "+ack.Message, nil)
}

// ServerAccept runs the server side: unwrap the client's encrypted_key
// and return the recovered session key alongside the ack frame to send.
// On failure it returns the error frame to send (status=error) together
// with a non-nil error describing the cause.
func ServerAccept(ownPrivateKey *rsa.PrivateKey, ke envelope.KeyExchange) (sessionKey []byte, ackFrame string, err error) {
	wrapped, decodeErr := base64.StdEncoding.DecodeString(ke.EncryptedKey)
	if decodeErr != nil {
		metrics.HandshakeOutcomes.WithLabelValues("wrap_fail").Inc()
		errFrame, _ := envelope.MarshalControlFrame(envelope.KeyExchangeAck{
			Type: envelope.TypeKeyExchangeAck, Status: "error", Message: "malformed encrypted_key encoding",
		})
		return nil, errFrame, errs.New(errs.CodeWrapFail, "malformed encrypted_key encoding", decodeErr)
	}

	sessionKey, unwrapErr := crypto.UnwrapSessionKey(ownPrivateKey, wrapped)
	if unwrapErr != nil {
		metrics.HandshakeOutcomes.WithLabelValues("wrap_fail").Inc()
		errFrame, _ := envelope.MarshalControlFrame(envelope.KeyExchangeAck{
			Type: envelope.TypeKeyExchangeAck, Status: "error", Message: "failed to unwrap session key",
		})
		return nil, errFrame, unwrapErr
	}

	ackFrame, err = envelope.MarshalControlFrame(envelope.KeyExchangeAck{
		Type: envelope.TypeKeyExchangeAck, Status: "ok",
	})
	if err != nil {
		return nil, "", err
	}
	metrics.HandshakeOutcomes.WithLabelValues("ok").Inc()
	return sessionKey, ackFrame, nil
}
