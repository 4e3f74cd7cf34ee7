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

// Package bootstrap wires storage backends from config for the CLI
// entry points, so cmd/clipcore-pair and cmd/clipcore-sweep share one
// construction path instead of each duplicating the memory/sqlite switch.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/appconnect-x/clipcore/clipboard"
	"github.com/appconnect-x/clipcore/config"
	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/trust/localkey"
)

// OpenTrustStore constructs the trust store named by cfg.Backend.
func OpenTrustStore(cfg *config.StorageConfig) (trust.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return trust.OpenSQLiteStore(cfg.Path)
	case "memory", "":
		return trust.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// OpenClipboardStore constructs the clipboard store named by cfg.Backend,
// using localKey to encrypt content at rest.
func OpenClipboardStore(cfg *config.StorageConfig, localKey []byte) (clipboard.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return clipboard.OpenSQLiteStore(cfg.Path, localKey)
	case "memory", "":
		return clipboard.NewMemoryStore(localKey), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// LocalKeySeedEnv names the environment variable CLI entry points read
// the local AEAD key's seed material from. Production embedders should
// source this from an OS keystore instead; CLI tooling has no UI to
// prompt through, so it falls back to an environment variable with a
// fixed seed for local/dev use.
const LocalKeySeedEnv = "CLIPCORE_LOCAL_KEY_SEED"

// DeriveLocalKey derives the device-bound local AEAD key for CLI use,
// reading seed material from LocalKeySeedEnv (falling back to a fixed
// development seed if unset) and installID as the HKDF salt.
func DeriveLocalKey(installID string) ([]byte, error) {
	seed := os.Getenv(LocalKeySeedEnv)
	if seed == "" {
		seed = "clipcore-development-seed-do-not-use-in-production"
	}
	return localkey.Derive([]byte(seed), installID)
}
