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

// Package pairing implements the QR-based trust bootstrap (spec §4.E):
// decoding the scanned payload, probing reachability, and committing a
// trusted Device row before requesting a transport connection.
package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/types"
)

// ReachabilityTimeout is the hard timeout for the TCP probe in step 2 of
// the pairing contract.
const ReachabilityTimeout = 3 * time.Second

// Connector is invoked after trust is committed to ask the transport to
// connect with the now-trusted peer's public key (step 5). It is
// best-effort: a failure here does not invalidate the trust just
// recorded.
type Connector interface {
	Connect(ctx context.Context, host string, port int, peerPublicKeyB64 string) error
}

// Associator runs the host-OS "companion device" association flow, if
// the platform exposes one (step 4). It is informational, not a
// security boundary.
type Associator interface {
	Associate(ctx context.Context, device *types.Device) error
}

// Dialer abstracts the TCP reachability probe for testability.
type Dialer func(network, address string, timeout time.Duration) (net.Conn, error)

// Manager implements the pair(qr_text) operation.
type Manager struct {
	Store      trust.Store
	Connector  Connector
	Associator Associator
	Dial       Dialer
	Now        func() int64
	Log        logger.Logger
}

// NewManager constructs a pairing Manager with production defaults for
// Dial/Now; Connector and Associator may be nil (both steps become
// no-ops then, matching "may fail independently without invalidating
// trust").
func NewManager(store trust.Store, connector Connector, associator Associator) *Manager {
	return &Manager{
		Store:      store,
		Connector:  connector,
		Associator: associator,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout(network, address, timeout)
		},
		Now: func() int64 { return time.Now().UnixMilli() },
		Log: logger.NewDefaultLogger(),
	}
}

// Pair decodes qrText, probes reachability, commits trust, and requests
// a transport connection. It returns the newly trusted Device on
// success. Failures before step 3 leave no state behind; failures in
// steps 4-5 are logged but do not unwind the committed trust.
func (m *Manager) Pair(ctx context.Context, qrText string) (*types.Device, error) {
	var qr types.QrPayload
	if err := json.Unmarshal([]byte(qrText), &qr); err != nil {
		return nil, errs.New(errs.CodeQRMalformed, "failed to decode QR payload", err)
	}
	if qr.Name == "" || qr.IP == "" || qr.Port == 0 || qr.PublicKey == "" || qr.CertificateFingerprint == "" {
		return nil, errs.New(errs.CodeQRMalformed, "QR payload missing required field", nil)
	}

	address := net.JoinHostPort(qr.IP, strconv.Itoa(qr.Port))
	conn, err := m.Dial("tcp", address, ReachabilityTimeout)
	if err != nil {
		return nil, errs.New(errs.CodeUnreachable, fmt.Sprintf("peer unreachable at %s", address), err)
	}
	conn.Close()

	device := &types.Device{
		ID:                     uuid.NewString(),
		Name:                   qr.Name,
		PublicKey:              qr.PublicKey,
		CertificateFingerprint: qr.CertificateFingerprint,
		LastSeen:               m.Now(),
		IsTrusted:              true,
	}
	if err := m.Store.Insert(ctx, device); err != nil {
		return nil, err
	}

	if m.Associator != nil {
		if err := m.Associator.Associate(ctx, device); err != nil {
			m.Log.Warn("companion device association failed", logger.Error(err), logger.String("deviceId", device.ID))
		}
	}
	if m.Connector != nil {
		if err := m.Connector.Connect(ctx, qr.IP, qr.Port, qr.PublicKey); err != nil {
			m.Log.Warn("post-pairing transport connect failed", logger.Error(err), logger.String("deviceId", device.ID))
		}
	}

	return device, nil
}
