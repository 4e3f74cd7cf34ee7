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

package health

import (
	"time"

	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/types"
)

// Checker performs health checks against the running component's
// transport and trust store.
type Checker struct {
	PrimaryState   func() types.ConnectionState
	FallbackActive func() bool
	TrustStore     trust.Store
}

// NewChecker constructs a Checker. primaryState and fallbackActive may be
// nil for components (e.g. the pairing CLI) that never hold a transport.
func NewChecker(primaryState func() types.ConnectionState, fallbackActive func() bool, trustStore trust.Store) *Checker {
	return &Checker{PrimaryState: primaryState, FallbackActive: fallbackActive, TrustStore: trustStore}
}

// CheckAll evaluates every dimension and rolls them up into a Report.
func (c *Checker) CheckAll() *Report {
	report := &Report{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	report.TransportStatus = c.checkTransport()
	if report.TransportStatus.Status != StatusHealthy {
		report.Status = report.TransportStatus.Status
		if report.TransportStatus.Error != "" {
			report.Errors = append(report.Errors, "transport: "+report.TransportStatus.Error)
		}
	}

	report.TrustStatus = c.checkTrust()
	if report.TrustStatus.Status != StatusHealthy {
		if report.Status == StatusHealthy {
			report.Status = report.TrustStatus.Status
		} else if report.TrustStatus.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
		}
		if report.TrustStatus.Error != "" {
			report.Errors = append(report.Errors, "trustStore: "+report.TrustStatus.Error)
		}
	}

	return report
}

func (c *Checker) checkTransport() *TransportHealth {
	if c.PrimaryState == nil {
		return &TransportHealth{Status: StatusDegraded, Error: "no transport attached"}
	}

	state := c.PrimaryState()
	fallbackInUse := c.FallbackActive != nil && c.FallbackActive()
	connected := state == types.Connected

	switch {
	case connected:
		return &TransportHealth{Status: StatusHealthy, PrimaryConnected: true, FallbackInUse: fallbackInUse}
	case fallbackInUse:
		return &TransportHealth{Status: StatusDegraded, PrimaryConnected: false, FallbackInUse: true, Error: "primary disconnected, serving over fallback"}
	default:
		return &TransportHealth{Status: StatusUnhealthy, PrimaryConnected: false, FallbackInUse: false, Error: "no connected transport"}
	}
}

func (c *Checker) checkTrust() *TrustHealth {
	if c.TrustStore == nil {
		return &TrustHealth{Status: StatusDegraded, Error: "no trust store attached"}
	}
	trusted := c.TrustStore.ListTrusted()
	return &TrustHealth{Status: StatusHealthy, TrustedDevice: len(trusted)}
}
