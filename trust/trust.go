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

// Package trust stores paired-device records: the Device rows created by
// pairing and consulted synchronously by the TLS pinning validator.
package trust

import (
	"context"

	"github.com/appconnect-x/clipcore/types"
)

// Store is the trust store contract (spec §4.C). ListTrusted must be
// callable synchronously from the middle of a TLS handshake; in-memory
// implementations satisfy this by construction, and durable
// implementations are expected to keep a write-through in-memory cache.
type Store interface {
	Insert(ctx context.Context, device *types.Device) error
	Update(ctx context.Context, device *types.Device) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*types.Device, error)
	List(ctx context.Context) ([]*types.Device, error)

	// ListTrusted returns the currently trusted devices without
	// suspending; it must be safe to call from a TLS verification
	// callback.
	ListTrusted() []*types.Device

	Touch(ctx context.Context, id string, lastSeenMillis int64) error
}
