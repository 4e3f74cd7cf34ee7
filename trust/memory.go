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

package trust

import (
	"context"
	"sync"

	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/types"
)

// MemoryStore is an in-memory trust store. Reads take a reader lock and
// writes take a writer lock, matching the read-mostly access pattern the
// spec's concurrency model calls for.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]*types.Device
}

// NewMemoryStore constructs an empty in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]*types.Device)}
}

func (s *MemoryStore) Insert(_ context.Context, device *types.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *device
	s.devices[device.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(_ context.Context, device *types.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[device.ID]; !ok {
		return errs.New(errs.CodeQRMalformed, "device not found: "+device.ID, nil)
	}
	cp := *device
	s.devices[device.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, id)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*types.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*types.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Device, 0, len(s.devices))
	for _, d := range s.devices {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

// ListTrusted serves the fingerprint-pinning hot path. It takes only a
// reader lock and performs no I/O, so it is safe to call synchronously
// from inside a TLS handshake.
func (s *MemoryStore) ListTrusted() []*types.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Device, 0, len(s.devices))
	for _, d := range s.devices {
		if d.IsTrusted {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) Touch(_ context.Context, id string, lastSeenMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return errs.New(errs.CodeQRMalformed, "device not found: "+id, nil)
	}
	d.LastSeen = lastSeenMillis
	return nil
}
