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

// Package clipboard stores ClipboardItem rows, encrypting content at
// rest under a device-bound key distinct from any transport session key.
package clipboard

import (
	"context"

	"github.com/appconnect-x/clipcore/types"
)

// StoreDecryptPlaceholder is returned in place of content that failed to
// decrypt at read time (e.g. after a local key reset), so stale rows
// never crash the caller.
const StoreDecryptPlaceholder = "[Decryption Failed]"

// Store is the clipboard store contract (spec §4.D).
type Store interface {
	Put(ctx context.Context, item *types.ClipboardItem) error
	Get(ctx context.Context, id string) (*types.ClipboardItem, error)

	// ItemsFlow returns all items ordered by timestamp descending.
	ItemsFlow(ctx context.Context) ([]*types.ClipboardItem, error)

	// UnsyncedFlow returns items with synced=false, oldest first.
	UnsyncedFlow(ctx context.Context) ([]*types.ClipboardItem, error)

	MarkSynced(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	// Sweep deletes rows with timestamp+ttl < nowMillis and returns the
	// count deleted.
	Sweep(ctx context.Context, nowMillis int64) (int, error)
}
