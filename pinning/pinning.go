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

// Package pinning implements the TLS fingerprint-pinning validator
// (spec §4.F). Trust rests on the leaf certificate's SHA-256 fingerprint
// alone; hostname and CA-chain verification are deliberately disabled
// (spec §9 Design Notes: clients commonly connect by IP, and SAN
// matching would add no security beyond the fingerprint pin).
package pinning

import (
	"crypto/tls"
	"crypto/x509"

	clipcrypto "github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/trust"
)

// Validator checks a presented certificate chain against a trust store's
// fingerprint set. It must never suspend: ListTrusted is expected to be
// served from an in-memory cache so this can run synchronously inside a
// TLS handshake callback.
type Validator struct {
	Store trust.Store
}

// NewValidator constructs a Validator backed by store.
func NewValidator(store trust.Store) *Validator {
	return &Validator{Store: store}
}

// Verify computes the leaf certificate's pinned fingerprint and accepts
// iff some trusted device carries a matching CertificateFingerprint. It
// returns CERT_UNTRUSTED on rejection.
func (v *Validator) Verify(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return errs.New(errs.CodeCertUntrusted, "empty certificate chain", nil)
	}

	fp := clipcrypto.FingerprintOf(chain[0])
	for _, device := range v.Store.ListTrusted() {
		if device.CertificateFingerprint == fp {
			return nil
		}
	}
	return errs.New(errs.CodeCertUntrusted, "certificate fingerprint not in trusted set", nil).
		WithDetails("fingerprint", fp)
}

// TLSConfig builds a *tls.Config whose VerifyPeerCertificate hook
// enforces the fingerprint pin in place of default chain/hostname
// verification.
//
// InsecureSkipVerify is required here: Go's tls package runs its default
// chain validation before any VerifyPeerCertificate hook, which would
// reject self-signed or IP-addressed leaf certificates before the pin is
// ever consulted. The pin itself, not this flag, is what gates trust.
func (v *Validator) TLSConfig(base *tls.Config) *tls.Config {
	cfg := base.Clone()
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		chain := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return errs.New(errs.CodeCertUntrusted, "failed to parse presented certificate", err)
			}
			chain = append(chain, cert)
		}
		return v.Verify(chain)
	}
	return cfg
}
