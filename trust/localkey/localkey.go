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

// Package localkey derives the device-bound local AEAD key used to
// encrypt clipboard content at rest (spec §9 Design Notes), distinct
// from any transport session key. The key is derived via HKDF-SHA256
// from OS keystore seed material plus a stable per-install salt, rather
// than generated fresh and stored directly, so it can be rederived
// without persisting key bytes to disk.
package localkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/appconnect-x/clipcore/crypto"
)

// Info is the HKDF info parameter binding the derived key to its
// purpose.
const Info = "clipcore-local-clipboard-key"

// Derive produces a crypto.KeySize-byte AEAD key from seed (raw OS
// keystore material, e.g. a keychain/DPAPI/libsecret-backed secret) and
// installID (a stable per-install identifier used as the HKDF salt, so
// two installs sharing a seed still derive distinct keys).
func Derive(seed []byte, installID string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("localkey: empty seed")
	}
	salt := []byte(installID)

	reader := hkdf.New(sha256.New, seed, salt, []byte(Info))
	key := make([]byte, crypto.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("localkey: failed to derive key: %w", err)
	}
	return key, nil
}

// Fingerprint returns a short hex identifier for a derived key, safe to
// log when confirming two processes derived the same key without
// revealing the key itself.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}
