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

package clipboard

import (
	"context"
	"sort"
	"sync"

	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/types"
)

// MemoryStore is an in-memory clipboard store. Content is held encrypted
// under localKey in the same envelope-codec textual form used on the
// wire, and is transparently decrypted on read.
type MemoryStore struct {
	localKey []byte

	mu    sync.Mutex
	items map[string]*types.ClipboardItem // content field holds the envelope-encoded ciphertext
}

// NewMemoryStore constructs an empty clipboard store encrypting at rest
// under localKey (the device-bound local AEAD key, 32 bytes).
func NewMemoryStore(localKey []byte) *MemoryStore {
	return &MemoryStore{localKey: localKey, items: make(map[string]*types.ClipboardItem)}
}

// Put upserts item by ID, encrypting its plaintext content before
// storage.
func (s *MemoryStore) Put(_ context.Context, item *types.ClipboardItem) error {
	sealed, err := envelope.SealText(s.localKey, []byte(item.Content))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	cp.Content = sealed
	s.items[item.ID] = &cp
	return nil
}

// Get returns item with content decrypted, or nil if not found. A
// decryption failure yields the placeholder content rather than an
// error, per spec §4.D.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.ClipboardItem, error) {
	s.mu.Lock()
	stored, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	cp := *stored
	s.mu.Unlock()

	plaintext, err := envelope.OpenText(s.localKey, cp.Content)
	if err != nil {
		cp.Content = StoreDecryptPlaceholder
		return &cp, nil
	}
	cp.Content = string(plaintext)
	return &cp, nil
}

func (s *MemoryStore) ItemsFlow(ctx context.Context) ([]*types.ClipboardItem, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]*types.ClipboardItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (s *MemoryStore) UnsyncedFlow(ctx context.Context) ([]*types.ClipboardItem, error) {
	all, err := s.ItemsFlow(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*types.ClipboardItem, 0)
	for _, item := range all {
		if !item.Synced {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return errs.New(errs.CodeSendFail, "item not found: "+id, nil)
	}
	item.Synced = true
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Sweep deletes rows whose timestamp+ttl < nowMillis and returns the
// count deleted.
func (s *MemoryStore) Sweep(_ context.Context, nowMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, item := range s.items {
		if item.Expired(nowMillis) {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}
